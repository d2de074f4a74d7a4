package report

import "errors"

// ErrPrinterUnavailable is returned when no headless browser is configured for PDF output.
var ErrPrinterUnavailable = errors.New("pdf printer unavailable")
