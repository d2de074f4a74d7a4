package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/moto-intake/internal/application"
	appintake "github.com/bryanwahyu/moto-intake/internal/application/intake"
	appsettings "github.com/bryanwahyu/moto-intake/internal/application/settings"
	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
	"github.com/bryanwahyu/moto-intake/internal/domain/delivery"
	"github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
	"github.com/bryanwahyu/moto-intake/internal/infra/db/sqlite"
	reportinfra "github.com/bryanwahyu/moto-intake/internal/infra/report"
	"github.com/bryanwahyu/moto-intake/internal/infra/settingsfile"
	"github.com/bryanwahyu/moto-intake/internal/infra/storage"
	"github.com/bryanwahyu/moto-intake/internal/middleware"
)

var (
	testNow  = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
)

const testDBURL = "https://www.notion.so/workspace/0123456789abcdef0123456789abcdef?v=1"

type stubAI struct {
	res ai.Result
	err error
}

func (s *stubAI) Analyze(ctx context.Context, req ai.Request) (ai.Result, error) { return s.res, s.err }
func (s *stubAI) Model() string                                                    { return "stub" }

type stubNotes struct {
	pages []delivery.Page
}

func (s *stubNotes) CreatePage(ctx context.Context, token string, p delivery.Page) (string, error) {
	s.pages = append(s.pages, p)
	return "https://notion.so/page-1", nil
}

type stubHost struct{}

func (stubHost) Upload(ctx context.Context, apiKey, filename string, data []byte) (string, error) {
	return "https://i.ibb.co/" + filename, nil
}

type stubMailer struct {
	sent []delivery.Mail
}

func (s *stubMailer) Send(ctx context.Context, acct delivery.MailAccount, m delivery.Mail) error {
	s.sent = append(s.sent, m)
	return nil
}

type server struct {
	t        *testing.T
	handler  http.Handler
	ai       *stubAI
	notes    *stubNotes
	mailer   *stubMailer
	settings *appsettings.Service
}

func newServer(t *testing.T, cfg Config) *server {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.Connect(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	repo := sqlite.NewIntakeRepository(conn)
	require.NoError(t, repo.Migrate(ctx))

	settingsSvc := appsettings.NewService(settingsfile.New(filepath.Join(t.TempDir(), "settings.yaml")), settings.Settings{}, nil)
	require.NoError(t, settingsSvc.Load(ctx))

	renderer, err := reportinfra.NewRenderer()
	require.NoError(t, err)

	s := &server{
		t:        t,
		ai:       &stubAI{res: ai.Result{Damages: "Pęknięty zderzak", Symptoms: "Luz na kierownicy"}},
		notes:    &stubNotes{},
		mailer:   &stubMailer{},
		settings: settingsSvc,
	}
	svc := &appintake.Service{
		Repo:     repo,
		Images:   storage.NewMemory(),
		AI:       s.ai,
		Settings: settingsSvc,
		Renderer: renderer,
		Notes:    s.notes,
		Host:     stubHost{},
		Mailer:   s.mailer,
		Clock:    application.FixedClock(testNow),
	}

	if cfg.Checkers == nil {
		cfg.Checkers = map[string]middleware.HealthChecker{"database": middleware.PingChecker{Target: repo}}
	}
	s.handler, err = NewRouter(svc, settingsSvc, cfg, nil)
	require.NoError(t, err)
	return s
}

func (s *server) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) upload(id intake.ID, names ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, n := range names {
		fw, err := mw.CreateFormFile("image", n)
		require.NoError(s.t, err)
		_, err = fw.Write(pngBytes)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/intakes/"+string(id)+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) create(f intake.Form) *intake.Intake {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/v1/intakes", f)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[intake.Intake](s.t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return &v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]string](t, rec)
	return (*body)["error"]
}

var sampleForm = intake.Form{
	ClientName:   "Jan Kowalski",
	ClientEmail:  "jan@example.pl",
	VehiclePlate: "wa12345",
	VehicleMake:  "Honda",
	VehicleModel: "CBR 600",
	VehicleYear:  "2019",
	Description:  "Szlif po upadku",
}

func TestIndexPage(t *testing.T) {
	s := newServer(t, Config{PDFEnabled: true})
	rec := s.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Moto Intake AI")
	assert.Contains(t, rec.Body.String(), `id="pdf"`)

	s = newServer(t, Config{})
	assert.NotContains(t, s.do(http.MethodGet, "/", nil).Body.String(), `id="pdf"`)
}

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t, Config{})
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, "ok", s.do(http.MethodGet, "/health/live", nil).Body.String())
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/metrics", nil).Code)
}

func TestIntakeLifecycle(t *testing.T) {
	s := newServer(t, Config{})
	in := s.create(sampleForm)
	assert.Equal(t, intake.NotionIdle, in.Notion.Status)

	rec := s.upload(in.ID, "przod.png", "tyl.png")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in = decode[intake.Intake](t, rec)
	require.Len(t, in.Images, 2)
	assert.Equal(t, "image/png", in.Images[0].MimeType)
	assert.Equal(t, "przod.png", in.Images[0].Filename)

	rec = s.do(http.MethodGet, "/v1/intakes/"+string(in.ID)+"/images/"+string(in.Images[1].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	// raport belum ada sebelum analisa
	rec = s.do(http.MethodGet, "/v1/intakes/"+string(in.ID)+"/report", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Błąd: Raport nie jest wygenerowany.", errorMessage(t, rec))

	rec = s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/analyze", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	in = decode[intake.Intake](t, rec)
	require.NotNil(t, in.Analysis)
	assert.Equal(t, "Pęknięty zderzak", in.Analysis.Damages)
	assert.Equal(t, "stub", in.Analysis.Model)

	rec = s.do(http.MethodGet, "/v1/intakes/"+string(in.ID)+"/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "WA12345")
	assert.Contains(t, rec.Body.String(), "Luz na kierownicy")

	rec = s.do(http.MethodGet, "/v1/intakes/"+string(in.ID)+"/report.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PROTOKÓŁ WERYFIKACJI")

	rec = s.do(http.MethodGet, "/v1/intakes/"+string(in.ID)+"/report.pdf", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Generowanie PDF jest niedostępne.", errorMessage(t, rec))

	rec = s.do(http.MethodDelete, "/v1/intakes/"+string(in.ID)+"/images/"+string(in.Images[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[intake.Intake](t, rec).Images, 1)

	updated := sampleForm
	updated.VehiclePlate = "KR 1234"
	rec = s.do(http.MethodPut, "/v1/intakes/"+string(in.ID), updated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KR 1234", decode[intake.Intake](t, rec).Form.VehiclePlate)

	rec = s.do(http.MethodGet, "/v1/intakes?page=1&page_size=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[intake.PaginatedResult](t, rec)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 5, list.PageSize)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/v1/intakes/"+string(in.ID), nil).Code)
	rec = s.do(http.MethodGet, "/v1/intakes/"+string(in.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Nie znaleziono zgłoszenia.", errorMessage(t, rec))
}

func TestUpload_Errors(t *testing.T) {
	s := newServer(t, Config{})
	in := s.create(sampleForm)

	rec := s.upload(in.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Proszę dodać przynajmniej jedno zdjęcie.", errorMessage(t, rec))

	rec = s.upload("missing", "a.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	small := newServer(t, Config{MaxUploadBytes: 64})
	in = small.create(sampleForm)
	rec = small.upload(in.ID, "a.png", "b.png", "c.png")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_NoImages(t *testing.T) {
	s := newServer(t, Config{})
	in := s.create(sampleForm)
	rec := s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/analyze", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Proszę dodać przynajmniej jedno zdjęcie.", errorMessage(t, rec))
}

func TestAnalyze_ProviderErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("gemini: %w", ai.ErrQuotaExceeded), http.StatusTooManyRequests},
		{fmt.Errorf("gemini: %w", ai.ErrOverloaded), http.StatusServiceUnavailable},
		{fmt.Errorf("gemini: %w", ai.ErrMalformedResponse), http.StatusBadGateway},
	}
	for _, tc := range cases {
		s := newServer(t, Config{})
		in := s.create(sampleForm)
		require.Equal(t, http.StatusCreated, s.upload(in.ID, "a.png").Code)

		s.ai.err = tc.err
		rec := s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/analyze", nil)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		assert.True(t, strings.HasPrefix(errorMessage(t, rec), "Błąd analizy AI: "))
	}
}

func TestCreate_Validation(t *testing.T) {
	s := newServer(t, Config{})

	bad := sampleForm
	bad.ClientEmail = "jan@"
	rec := s.do(http.MethodPost, "/v1/intakes", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Nieprawidłowy adres e-mail.", errorMessage(t, rec))

	// format bebas (VIN lama, telepon dengan teks) tetap diterima
	loose := sampleForm
	loose.VehicleVIN = "VIN242525SDFWW"
	loose.ClientPhone = "tel. 111 222 333"
	loose.VehicleYear = "ok. 1975"
	rec = s.do(http.MethodPost, "/v1/intakes", loose)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "VIN242525SDFWW", decode[intake.Intake](t, rec).Form.VehicleVIN)

	long := sampleForm
	long.VehiclePlate = strings.Repeat("W", middleware.MaxShortField+1)
	rec = s.do(http.MethodPost, "/v1/intakes", long)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Pole jest zbyt długie.", errorMessage(t, rec))

	req := httptest.NewRequest(http.MethodPost, "/v1/intakes", strings.NewReader("{"))
	raw := httptest.NewRecorder()
	s.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
	assert.Equal(t, "Nieprawidłowe dane JSON.", errorMessage(t, raw))
}

func TestSettings_SaveAndMask(t *testing.T) {
	s := newServer(t, Config{})

	rec := s.do(http.MethodPut, "/v1/settings", settings.Settings{NotionToken: "ntn_", NotionDatabaseID: "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Nieprawidłowe ID Bazy Danych.", errorMessage(t, rec))

	rec = s.do(http.MethodPut, "/v1/settings", settings.Settings{NotionDatabaseID: testDBURL, NotionTitleKey: "Klient"})
	assert.Equal(t, "Wprowadź Notion Token.", errorMessage(t, rec))

	rec = s.do(http.MethodPut, "/v1/settings", settings.Settings{
		NotionToken:      "ntn_secret1234",
		NotionDatabaseID: testDBURL,
		NotionTitleKey:   "Klient",
		ImgBBAPIKey:      "imgbbkey9876",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[settings.Settings](t, rec)
	assert.Equal(t, "**********1234", saved.NotionToken)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", saved.NotionDatabaseID)

	// kirim balik nilai yang dimask, token asli tetap tersimpan
	saved.NotionTitleKey = "Imię"
	rec = s.do(http.MethodPut, "/v1/settings", saved)
	require.Equal(t, http.StatusOK, rec.Code)
	cur := s.settings.Get(context.Background())
	assert.Equal(t, "ntn_secret1234", cur.NotionToken)
	assert.Equal(t, "imgbbkey9876", cur.ImgBBAPIKey)
	assert.Equal(t, "Imię", cur.NotionTitleKey)

	rec = s.do(http.MethodGet, "/v1/settings", nil)
	assert.Equal(t, "********9876", decode[settings.Settings](t, rec).ImgBBAPIKey)
}

func configureNotion(t *testing.T, s *server) {
	t.Helper()
	_, err := s.settings.Save(context.Background(), settings.Settings{
		NotionToken:       "ntn_secret1234",
		NotionDatabaseID:  testDBURL,
		NotionTitleKey:    "Klient",
		ImgBBAPIKey:       "imgbb",
		EmailJSServiceID:  "svc",
		EmailJSTemplateID: "tpl",
		EmailJSPublicKey:  "pub",
	})
	require.NoError(t, err)
}

func TestNotionExport(t *testing.T) {
	s := newServer(t, Config{})
	in := s.create(sampleForm)

	rec := s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/notion", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Skonfiguruj Notion w ustawieniach.", errorMessage(t, rec))

	configureNotion(t, s)
	require.Equal(t, http.StatusCreated, s.upload(in.ID, "a.png").Code)

	rec = s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/notion", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[intake.Intake](t, rec)
	assert.Equal(t, intake.NotionSuccess, out.Notion.Status)
	assert.Equal(t, "https://notion.so/page-1", out.Notion.PageURL)
	require.Len(t, s.notes.pages, 1)
	assert.Equal(t, []string{"https://i.ibb.co/a.png"}, s.notes.pages[0].ImageURLs)

	rec = s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/notion", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Zgłoszenie jest już zapisane w Notion.", errorMessage(t, rec))
}

func TestNotionExport_ConfirmationRequired(t *testing.T) {
	s := newServer(t, Config{})
	configureNotion(t, s)
	in := s.create(intake.Form{VehiclePlate: "WA1"})

	rec := s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/notion", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Brak analizy AI. Zapisać?", errorMessage(t, rec))
	assert.Empty(t, s.notes.pages)

	rec = s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/notion?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, s.notes.pages, 1)
}

func TestSendEmail(t *testing.T) {
	s := newServer(t, Config{})
	in := s.create(sampleForm)
	require.Equal(t, http.StatusCreated, s.upload(in.ID, "a.png").Code)

	rec := s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/email", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Skonfiguruj EmailJS w ustawieniach.", errorMessage(t, rec))

	configureNotion(t, s)
	rec = s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/email", nil)
	assert.Equal(t, "Błąd: Raport nie jest wygenerowany.", errorMessage(t, rec))

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/analyze", nil).Code)

	rec = s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/email", map[string]string{"to": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/email", map[string]string{"to": "serwis@example.pl"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[intake.Intake](t, rec)
	require.NotNil(t, out.Email)
	assert.Equal(t, "serwis@example.pl", out.Email.SentTo)
	require.Len(t, s.mailer.sent, 1)

	// tanpa body dipakai e-mail klien
	rec = s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/email", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jan@example.pl", s.mailer.sent[1].To)
}

func TestAPIKeyRequired(t *testing.T) {
	s := newServer(t, Config{APIKeys: []string{"sekret"}})

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/intakes", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/intakes", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitedEndpoints(t *testing.T) {
	s := newServer(t, Config{Limiter: middleware.NewRateLimiter(0.001, 1)})
	in := s.create(sampleForm)
	require.Equal(t, http.StatusCreated, s.upload(in.ID, "a.png").Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/analyze", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/v1/intakes/"+string(in.ID)+"/analyze", nil).Code)
	// endpoint biasa tidak kena limit
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/intakes/"+string(in.ID), nil).Code)
}
