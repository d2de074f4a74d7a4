package report

import "context"

// Renderer assembles the two template formats.
type Renderer interface {
	HTML(doc Document) (string, error)
	Text(doc Document) (string, error)
}

// PDFPrinter turns the HTML protocol into a PDF.
type PDFPrinter interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}
