package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	appintake "github.com/bryanwahyu/moto-intake/internal/application/intake"
	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
	"github.com/bryanwahyu/moto-intake/internal/domain/delivery"
	"github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

func TestStatusFor(t *testing.T) {
	upstream := &delivery.UpstreamError{Service: "notion", StatusCode: 400, Message: "bad"}

	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"not found", fmt.Errorf("get: %w", intake.ErrNotFound), http.StatusNotFound, "Nie znaleziono zgłoszenia."},
		{"validation", &intake.ValidationError{Field: "vehicle_vin", Message: "Zły VIN"}, http.StatusBadRequest, "Zły VIN"},
		{"bad request", badRequest("Nieprawidłowe dane JSON.", errors.New("eof")), http.StatusBadRequest, "Nieprawidłowe dane JSON."},
		{"token", settings.ErrTokenRequired, http.StatusBadRequest, "Wprowadź Notion Token."},
		{"title key", settings.ErrTitleKeyRequired, http.StatusBadRequest, "Podaj nazwę głównej kolumny."},
		{"photo gone", fmt.Errorf("load photo x: %w", intake.ErrPhotoMissing), http.StatusGone, "Zdjęcie nie jest już dostępne. Usuń je i dodaj ponownie."},
		{"in progress", intake.ErrExportInProgress, http.StatusConflict, "Zapis do Notion już trwa."},
		{"quota without action", ai.ErrQuotaExceeded, http.StatusTooManyRequests, "Przekroczono limit zapytań AI."},
		{
			"quota inside action",
			&appintake.ActionError{Message: "Błąd analizy AI: limit", Err: ai.ErrQuotaExceeded},
			http.StatusTooManyRequests, "Błąd analizy AI: limit",
		},
		{
			"upstream",
			&appintake.ActionError{Message: "Błąd zapisu: Sprawdź nazwy kolumn.", Err: upstream},
			http.StatusBadGateway, "Błąd zapisu: Sprawdź nazwy kolumn.",
		},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, "Wewnętrzny błąd serwera."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, msg := statusFor(tc.err)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, tc.msg, msg)
		})
	}
}
