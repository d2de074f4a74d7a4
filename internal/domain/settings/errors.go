package settings

import "errors"

var (
	// ErrTokenRequired: "Wprowadź Notion Token."
	ErrTokenRequired = errors.New("notion token is required")
	// ErrInvalidDatabaseID: "Nieprawidłowe ID Bazy Danych."
	ErrInvalidDatabaseID = errors.New("invalid notion database id")
	// ErrTitleKeyRequired: "Podaj nazwę głównej kolumny."
	ErrTitleKeyRequired = errors.New("notion title column is required")
	// ErrNotionNotConfigured: "Skonfiguruj Notion w ustawieniach."
	ErrNotionNotConfigured = errors.New("notion is not configured")
	// ErrEmailNotConfigured is returned when EmailJS IDs are missing.
	ErrEmailNotConfigured = errors.New("emailjs is not configured")
)
