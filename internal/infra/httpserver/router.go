package httpserver

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appintake "github.com/bryanwahyu/moto-intake/internal/application/intake"
	appsettings "github.com/bryanwahyu/moto-intake/internal/application/settings"
	"github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
	"github.com/bryanwahyu/moto-intake/internal/middleware"
)

//go:embed web/index.html.tmpl
var webFS embed.FS

const defaultMaxUpload = 20 << 20

// Config holds the HTTP-facing options.
type Config struct {
	CORSOrigins    []string
	APIKeys        []string
	MaxUploadBytes int64
	PDFEnabled     bool
	Checkers       map[string]middleware.HealthChecker

	// Limiter guards the AI and delivery endpoints; nil disables rate limiting.
	Limiter *middleware.RateLimiter
}

type Router struct {
	intakes  *appintake.Service
	settings *appsettings.Service
	log      *zap.Logger
	cfg      Config
	index    *template.Template
}

func NewRouter(intakes *appintake.Service, settingsSvc *appsettings.Service, cfg Config, log *zap.Logger) (http.Handler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	index, err := template.ParseFS(webFS, "web/index.html.tmpl")
	if err != nil {
		return nil, err
	}

	r := &Router{intakes: intakes, settings: settingsSvc, log: log, cfg: cfg, index: index}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(log))
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(cfg.APIKeys))

	mux.Get("/", r.wrap(r.handleIndex))
	mux.Get("/health", middleware.HealthHandler(cfg.Checkers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(cfg.Checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/settings", r.wrap(r.handleGetSettings))
		rt.Put("/settings", r.wrap(r.handleSaveSettings))

		rt.Post("/intakes", r.wrap(r.handleCreate))
		rt.Get("/intakes", r.wrap(r.handleList))
		rt.Route("/intakes/{id}", func(it chi.Router) {
			it.Get("/", r.wrap(r.handleGet))
			it.Put("/", r.wrap(r.handleUpdate))
			it.Delete("/", r.wrap(r.handleDelete))

			it.Post("/images", r.wrap(r.handleAddImages))
			it.Get("/images/{imageID}", r.wrap(r.handleGetImage))
			it.Delete("/images/{imageID}", r.wrap(r.handleRemoveImage))

			it.Get("/report", r.wrap(r.handleReportHTML))
			it.Get("/report.txt", r.wrap(r.handleReportText))
			it.Get("/report.pdf", r.wrap(r.handleReportPDF))

			// panggilan ke layanan eksternal kena rate limit
			it.Group(func(ext chi.Router) {
				if cfg.Limiter != nil {
					ext.Use(cfg.Limiter.Middleware(log))
				}
				ext.Post("/analyze", r.wrap(r.handleAnalyze))
				ext.Post("/notion", r.wrap(r.handleNotion))
				ext.Post("/email", r.wrap(r.handleEmail))
			})
		})
	})

	return mux, nil
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, msg := statusFor(err)
			if status >= http.StatusInternalServerError {
				r.log.Error("request failed",
					zap.String("path", req.URL.Path),
					zap.Int("status", status),
					zap.Error(err),
				)
			}
			_ = writeJSON(w, status, map[string]string{"error": msg})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeJSON(req *http.Request, v any) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return badRequest("Nieprawidłowe dane JSON.", err)
	}
	return nil
}

func intakeID(req *http.Request) intake.ID {
	return intake.ID(chi.URLParam(req, "id"))
}

// GET /
func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return r.index.Execute(w, map[string]any{
		"PDFEnabled": r.cfg.PDFEnabled,
		"TitleKey":   settings.DefaultTitleKey,
	})
}

//
// ==== SETTINGS ====
//

// GET /v1/settings
func (r *Router) handleGetSettings(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.settings.Get(req.Context()).Masked())
}

// PUT /v1/settings
// Secrets sent back in their masked form keep the stored value.
func (r *Router) handleSaveSettings(w http.ResponseWriter, req *http.Request) error {
	var body settings.Settings
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	current := r.settings.Get(req.Context())
	body = unmask(body, current)

	saved, err := r.settings.Save(req.Context(), body)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, saved.Masked())
}

func unmask(in, current settings.Settings) settings.Settings {
	masked := current.Masked()
	if current.NotionToken != "" && in.NotionToken == masked.NotionToken {
		in.NotionToken = current.NotionToken
	}
	if current.ImgBBAPIKey != "" && in.ImgBBAPIKey == masked.ImgBBAPIKey {
		in.ImgBBAPIKey = current.ImgBBAPIKey
	}
	if current.EmailJSPrivateKey != "" && in.EmailJSPrivateKey == masked.EmailJSPrivateKey {
		in.EmailJSPrivateKey = current.EmailJSPrivateKey
	}
	return in
}

//
// ==== INTAKES ====
//

func (r *Router) readForm(req *http.Request) (intake.Form, error) {
	var form intake.Form
	if err := decodeJSON(req, &form); err != nil {
		return form, err
	}
	form = middleware.SanitizeForm(form)
	if err := middleware.ValidateForm(form); err != nil {
		return form, err
	}
	return form, nil
}

// POST /v1/intakes
func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) error {
	form, err := r.readForm(req)
	if err != nil {
		return err
	}
	in, err := r.intakes.Create(req.Context(), form)
	if err != nil {
		return err
	}
	middleware.IncrementIntakes()
	return writeJSON(w, http.StatusCreated, in)
}

// GET /v1/intakes?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.intakes.List(req.Context(), page, middleware.ValidatePageSize(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/intakes/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	in, err := r.intakes.Get(req.Context(), intakeID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, in)
}

// PUT /v1/intakes/{id}
func (r *Router) handleUpdate(w http.ResponseWriter, req *http.Request) error {
	form, err := r.readForm(req)
	if err != nil {
		return err
	}
	in, err := r.intakes.UpdateForm(req.Context(), intakeID(req), form)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, in)
}

// DELETE /v1/intakes/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	if err := r.intakes.Delete(req.Context(), intakeID(req)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

//
// ==== IMAGES ====
//

// POST /v1/intakes/{id}/images (multipart, field "image", repeatable)
func (r *Router) handleAddImages(w http.ResponseWriter, req *http.Request) error {
	id := intakeID(req)
	if _, err := r.intakes.Get(req.Context(), id); err != nil {
		return err
	}

	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes)
	if err := req.ParseMultipartForm(r.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("Zdjęcia są zbyt duże.", err)
		}
		return badRequest("Nieprawidłowe dane formularza.", err)
	}
	defer req.MultipartForm.RemoveAll()

	files := req.MultipartForm.File["image"]
	if len(files) == 0 {
		return intake.ErrNoImages
	}
	for _, fh := range files {
		if err := r.addImage(req, id, fh); err != nil {
			return err
		}
	}

	in, err := r.intakes.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, in)
}

func (r *Router) addImage(req *http.Request, id intake.ID, fh *multipart.FileHeader) error {
	f, err := fh.Open()
	if err != nil {
		return badRequest("Nie można odczytać pliku.", err)
	}
	defer f.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		mimeType = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}

	_, err = r.intakes.AddImage(req.Context(), id, fh.Filename, mimeType, f, fh.Size)
	return err
}

// GET /v1/intakes/{id}/images/{imageID}
func (r *Router) handleGetImage(w http.ResponseWriter, req *http.Request) error {
	img, data, err := r.intakes.GetImage(req.Context(), intakeID(req), intake.ImageID(chi.URLParam(req, "imageID")))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, err = w.Write(data)
	return err
}

// DELETE /v1/intakes/{id}/images/{imageID}
func (r *Router) handleRemoveImage(w http.ResponseWriter, req *http.Request) error {
	in, err := r.intakes.RemoveImage(req.Context(), intakeID(req), intake.ImageID(chi.URLParam(req, "imageID")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, in)
}

//
// ==== ANALYSIS & REPORT ====
//

// POST /v1/intakes/{id}/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	start := time.Now()
	in, err := r.intakes.Analyze(req.Context(), intakeID(req))
	if err != nil {
		var ae *appintake.ActionError
		if errors.As(err, &ae) {
			middleware.RecordAnalysis(err)
		}
		return err
	}
	middleware.RecordAnalysis(nil)
	r.log.Debug("analysis finished", zap.String("intake_id", string(in.ID)), zap.Duration("took", time.Since(start)))
	return writeJSON(w, http.StatusOK, in)
}

// GET /v1/intakes/{id}/report
func (r *Router) handleReportHTML(w http.ResponseWriter, req *http.Request) error {
	html, err := r.intakes.RenderHTML(req.Context(), intakeID(req))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = io.WriteString(w, html)
	return err
}

// GET /v1/intakes/{id}/report.txt
func (r *Router) handleReportText(w http.ResponseWriter, req *http.Request) error {
	text, err := r.intakes.RenderText(req.Context(), intakeID(req))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err = io.WriteString(w, text)
	return err
}

// GET /v1/intakes/{id}/report.pdf
func (r *Router) handleReportPDF(w http.ResponseWriter, req *http.Request) error {
	pdf, filename, err := r.intakes.RenderPDF(req.Context(), intakeID(req))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	_, err = w.Write(pdf)
	return err
}

//
// ==== DELIVERY ====
//

// POST /v1/intakes/{id}/notion?confirm=true
func (r *Router) handleNotion(w http.ResponseWriter, req *http.Request) error {
	confirmed, _ := strconv.ParseBool(req.URL.Query().Get("confirm"))

	in, err := r.intakes.SaveToNotion(req.Context(), intakeID(req), confirmed)
	if err != nil {
		var ae *appintake.ActionError
		if errors.As(err, &ae) {
			middleware.RecordExport(false, err)
		}
		return err
	}
	middleware.RecordExport(in.Notion.Status == intake.NotionFallback, nil)
	return writeJSON(w, http.StatusOK, in)
}

// POST /v1/intakes/{id}/email
// Body (optional): {"to": "<address>"}
func (r *Router) handleEmail(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("Nieprawidłowe dane JSON.", err)
	}
	if err := middleware.ValidateEmail(body.To); err != nil {
		return err
	}

	in, err := r.intakes.SendEmail(req.Context(), intakeID(req), body.To)
	if err != nil {
		var ae *appintake.ActionError
		if errors.As(err, &ae) {
			middleware.RecordEmail(err)
		}
		return err
	}
	middleware.RecordEmail(nil)
	return writeJSON(w, http.StatusOK, in)
}
