package gemini

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(t.Context(), "test-key", "gemini-test", srv.URL)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(t.Context(), "", "", "")
	assert.Error(t, err)
}

func TestAnalyze_InlinePhotosAndJSONMode(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"damages\":\"Wgniecenie\",\"symptoms\":\"Hałas\"}"}]}}]}`))
	})

	res, err := c.Analyze(t.Context(), ai.Request{
		Description: "Hałas z przodu",
		Photos:      []ai.Photo{{MimeType: "image/jpeg", Data: []byte("jpg")}},
	})
	require.NoError(t, err)
	assert.Equal(t, ai.Result{Damages: "Wgniecenie", Symptoms: "Hałas"}, res)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"mimeType":"image/jpeg"`)
	assert.Contains(t, string(raw), `application/json`)
	assert.Contains(t, string(raw), `Hałas z przodu`)
}

func TestAnalyze_StatusMapping(t *testing.T) {
	tests := []struct {
		code   int
		status string
		want   error
	}{
		{http.StatusServiceUnavailable, "UNAVAILABLE", ai.ErrOverloaded},
		{http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", ai.ErrQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.code)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"busy","status":%q}}`, tt.code, tt.status)
			})
			_, err := c.Analyze(t.Context(), ai.Request{Description: "x"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
