package httpserver

import (
	"errors"
	"net/http"

	appintake "github.com/bryanwahyu/moto-intake/internal/application/intake"
	domai "github.com/bryanwahyu/moto-intake/internal/domain/ai"
	"github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/domain/report"
	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

// requestError is a malformed request; Message is shown to the user.
type requestError struct {
	Message string
	Err     error
}

func (e *requestError) Error() string { return e.Message }

func (e *requestError) Unwrap() error { return e.Err }

func badRequest(msg string, err error) error {
	return &requestError{Message: msg, Err: err}
}

type errorMapping struct {
	target  error
	status  int
	message string
}

// urutan penting: sentinel AI dicek sebelum ActionError yang membungkusnya
var errorMappings = []errorMapping{
	{intake.ErrNotFound, http.StatusNotFound, "Nie znaleziono zgłoszenia."},
	{intake.ErrPhotoMissing, http.StatusGone, "Zdjęcie nie jest już dostępne. Usuń je i dodaj ponownie."},
	{intake.ErrNoImages, http.StatusBadRequest, "Proszę dodać przynajmniej jedno zdjęcie."},
	{intake.ErrInvalidImage, http.StatusBadRequest, "Dozwolone są tylko pliki graficzne."},
	{intake.ErrNotAnalyzed, http.StatusBadRequest, "Błąd: Raport nie jest wygenerowany."},
	{intake.ErrNoRecipient, http.StatusBadRequest, "Podaj adres e-mail odbiorcy."},
	{settings.ErrTokenRequired, http.StatusBadRequest, "Wprowadź Notion Token."},
	{settings.ErrInvalidDatabaseID, http.StatusBadRequest, "Nieprawidłowe ID Bazy Danych."},
	{settings.ErrTitleKeyRequired, http.StatusBadRequest, "Podaj nazwę głównej kolumny."},
	{settings.ErrNotionNotConfigured, http.StatusBadRequest, "Skonfiguruj Notion w ustawieniach."},
	{settings.ErrEmailNotConfigured, http.StatusBadRequest, "Skonfiguruj EmailJS w ustawieniach."},
	{intake.ErrConfirmationRequired, http.StatusConflict, "Brak analizy AI. Zapisać?"},
	{intake.ErrExportInProgress, http.StatusConflict, "Zapis do Notion już trwa."},
	{intake.ErrAlreadyExported, http.StatusConflict, "Zgłoszenie jest już zapisane w Notion."},
	{domai.ErrQuotaExceeded, http.StatusTooManyRequests, "Przekroczono limit zapytań AI."},
	{domai.ErrOverloaded, http.StatusServiceUnavailable, "Model AI jest przeciążony. Spróbuj ponownie później."},
	{report.ErrPrinterUnavailable, http.StatusServiceUnavailable, "Generowanie PDF jest niedostępne."},
}

// statusFor maps an error to the HTTP status and the localized message for the body.
func statusFor(err error) (int, string) {
	var re *requestError
	if errors.As(err, &re) {
		return http.StatusBadRequest, re.Message
	}
	var ve *intake.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Message
	}

	var ae *appintake.ActionError
	hasAction := errors.As(err, &ae)

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if hasAction {
			msg = ae.Message
		}
		return m.status, msg
	}
	if hasAction {
		return http.StatusBadGateway, ae.Message
	}
	return http.StatusInternalServerError, "Wewnętrzny błąd serwera."
}
