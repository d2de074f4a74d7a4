package intake

import "errors"

var (
	// ErrNotFound is returned when no intake or photo matches the given ID.
	ErrNotFound = errors.New("intake not found")
	// ErrNoImages blocks an analysis without photos.
	ErrNoImages = errors.New("at least one image is required")
	// ErrNotAnalyzed is returned when an operation needs an AI result first.
	ErrNotAnalyzed = errors.New("intake has not been analyzed")
	// ErrConfirmationRequired guards exporting an intake with no analysis and no client name.
	ErrConfirmationRequired = errors.New("export without analysis requires confirmation")
	// ErrExportInProgress is returned while images are uploading or the page is being saved.
	ErrExportInProgress = errors.New("export already in progress")
	// ErrAlreadyExported is returned once the notes page exists.
	ErrAlreadyExported = errors.New("intake already exported")
	// ErrNoRecipient is returned when neither the request nor the form has an e-mail address.
	ErrNoRecipient = errors.New("no e-mail recipient")
	// ErrPhotoMissing is returned when an attached photo has no stored bytes any more,
	// e.g. the in-memory photo store was reset by a restart.
	ErrPhotoMissing = errors.New("photo bytes no longer stored")
	// ErrInvalidImage rejects uploads that are not images.
	ErrInvalidImage = errors.New("unsupported image type")
)

// ValidationError carries a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
