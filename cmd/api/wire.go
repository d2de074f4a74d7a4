package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	openaisdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bryanwahyu/moto-intake/internal/application"
	appai "github.com/bryanwahyu/moto-intake/internal/application/ai"
	appintake "github.com/bryanwahyu/moto-intake/internal/application/intake"
	appsettings "github.com/bryanwahyu/moto-intake/internal/application/settings"
	"github.com/bryanwahyu/moto-intake/internal/config"
	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
	"github.com/bryanwahyu/moto-intake/internal/domain/intake"
	"github.com/bryanwahyu/moto-intake/internal/infra/ai/gemini"
	"github.com/bryanwahyu/moto-intake/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/moto-intake/internal/infra/db/mysql"
	"github.com/bryanwahyu/moto-intake/internal/infra/db/postgres"
	"github.com/bryanwahyu/moto-intake/internal/infra/db/sqlite"
	"github.com/bryanwahyu/moto-intake/internal/infra/emailjs"
	"github.com/bryanwahyu/moto-intake/internal/infra/httpserver"
	"github.com/bryanwahyu/moto-intake/internal/infra/imgbb"
	"github.com/bryanwahyu/moto-intake/internal/infra/notion"
	"github.com/bryanwahyu/moto-intake/internal/infra/report"
	"github.com/bryanwahyu/moto-intake/internal/infra/settingsfile"
	"github.com/bryanwahyu/moto-intake/internal/infra/storage"
	"github.com/bryanwahyu/moto-intake/internal/middleware"
)

// repository is what every SQL adapter offers.
type repository interface {
	intake.Repository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

type photoStore interface {
	intake.ImageStore
	Ping(ctx context.Context) error
}

type app struct {
	Handler http.Handler
	limiter *middleware.RateLimiter
	log     *zap.Logger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// pruneLimiter drops idle rate-limit buckets until ctx ends.
func (a *app) pruneLimiter(ctx context.Context) {
	if a.limiter == nil {
		return
	}
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Prune(10 * time.Minute); n > 0 {
				a.log.Debug("rate limiter pruned", zap.Int("visitors", n))
			}
		}
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (repository, func(), error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		return mysqlp.NewIntakeRepository(db), func() { db.Close() }, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		return postgres.NewIntakeRepository(db), func() { db.Close() }, nil
	default:
		if dir := filepath.Dir(cfg.DSN()); cfg.DSN() != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("sqlite dir: %w", err)
			}
		}
		db, err := sqlite.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite connect: %w", err)
		}
		return sqlite.NewIntakeRepository(db), func() { db.Close() }, nil
	}
}

func openPhotoStore(ctx context.Context, cfg *config.Config) (photoStore, error) {
	if !cfg.Minio.Enabled {
		return storage.NewMemory(), nil
	}
	store, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	return store, nil
}

func newAIClient(ctx context.Context, cfg *config.Config) (ai.Client, error) {
	switch cfg.AI.Provider {
	case "openai":
		if cfg.AI.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		oc := openaisdk.DefaultConfig(cfg.AI.APIKey)
		if cfg.AI.BaseURL != "" {
			oc.BaseURL = cfg.AI.BaseURL
		}
		return openai.NewClientWithConfig(oc, cfg.AI.Model), nil
	default:
		client, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	repo, closeDB, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeDB)
	if err := repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	photos, err := openPhotoStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.Minio.Enabled {
		log.Warn("minio disabled, photos are kept in memory only")
	}

	provider, err := newAIClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ai client: %w", err)
	}
	analyzer := appai.NewService(provider,
		appai.WithMaxAttempts(cfg.AI.MaxAttempts),
		appai.WithInitialBackoff(cfg.AI.InitialBackoff),
		appai.WithAttemptTimeout(cfg.AI.Timeout),
		appai.WithLogger(log.Named("ai")),
	)

	settingsSvc := appsettings.NewService(settingsfile.New(cfg.Settings.Path), cfg.Defaults, log.Named("settings"))
	if err := settingsSvc.Load(ctx); err != nil {
		return nil, fmt.Errorf("settings load: %w", err)
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("report templates: %w", err)
	}

	svc := &appintake.Service{
		Repo:     repo,
		Images:   photos,
		AI:       analyzer,
		Settings: settingsSvc,
		Renderer: renderer,
		Notes:    notion.NewClient(cfg.Notion.BaseURL, cfg.Notion.Version),
		Host:     imgbb.NewClient(cfg.ImgBB.Endpoint),
		Mailer:   emailjs.NewClient(cfg.EmailJS.Endpoint),
		Clock:    application.SystemClock{},
		Log:      log.Named("intake"),
	}
	if cfg.Report.PDFEnabled {
		printer := report.NewPDFPrinter(cfg.Report.ChromeBin, cfg.Report.Headless, log.Named("pdf"))
		svc.Printer = printer
		a.closers = append(a.closers, func() {
			if err := printer.Close(); err != nil {
				log.Warn("browser close", zap.Error(err))
			}
		})
	}

	if cfg.Server.RateLimit.RPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	}

	a.Handler, err = httpserver.NewRouter(svc, settingsSvc, httpserver.Config{
		CORSOrigins:    cfg.Server.CORSOrigins,
		APIKeys:        cfg.Server.APIKeys,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		PDFEnabled:     cfg.Report.PDFEnabled,
		Limiter:        a.limiter,
		Checkers: map[string]middleware.HealthChecker{
			"database": middleware.PingChecker{Target: repo},
			"photos":   middleware.PingChecker{Target: photos},
		},
	}, log)
	if err != nil {
		return nil, err
	}

	log.Info("intake service ready",
		zap.String("db", cfg.Database.Driver),
		zap.String("ai", cfg.AI.Provider),
		zap.String("model", provider.Model()),
		zap.Bool("pdf", cfg.Report.PDFEnabled),
	)
	ok = true
	return a, nil
}
