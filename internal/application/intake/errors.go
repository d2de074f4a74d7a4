package intake

// ActionError is a failed call to an external service. Message is the localized text shown to
// the mechanic; Err keeps the cause for errors.Is/As.
type ActionError struct {
	Message string
	Err     error
}

func (e *ActionError) Error() string { return e.Message }

func (e *ActionError) Unwrap() error { return e.Err }
