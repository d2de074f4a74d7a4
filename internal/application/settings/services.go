package settings

import (
	"context"
	"sync"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

// Service loads and saves the external-service credentials.
// The current value is cached; Save overwrites both the cache and the store.
type Service struct {
	store    domain.Store
	defaults domain.Settings
	log      *zap.Logger

	mu      sync.RWMutex
	current domain.Settings
}

func NewService(store domain.Store, defaults domain.Settings, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, defaults: defaults, log: log, current: defaults}
}

// Load reads persisted settings; stored values win over defaults field by field,
// the way the form only replaced state for keys present in storage.
func (s *Service) Load(ctx context.Context) error {
	stored, ok, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	cur := s.defaults
	if cur.NotionTitleKey == "" {
		cur.NotionTitleKey = domain.DefaultTitleKey
	}
	if ok {
		cur = overlay(cur, stored)
		s.log.Info("settings loaded from store")
	} else {
		s.log.Info("no stored settings, using defaults")
	}
	s.mu.Lock()
	s.current = cur
	s.mu.Unlock()
	return nil
}

// Get returns the current settings.
func (s *Service) Get(ctx context.Context) domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save validates, trims and persists the settings, storing the extracted database ID.
func (s *Service) Save(ctx context.Context, in domain.Settings) (domain.Settings, error) {
	clean := in.Trimmed()
	if clean.NotionToken == "" {
		return domain.Settings{}, domain.ErrTokenRequired
	}
	id, ok := domain.ExtractDatabaseID(clean.NotionDatabaseID)
	if !ok {
		return domain.Settings{}, domain.ErrInvalidDatabaseID
	}
	if clean.NotionTitleKey == "" {
		return domain.Settings{}, domain.ErrTitleKeyRequired
	}
	clean.NotionDatabaseID = id

	if err := s.store.Save(ctx, clean); err != nil {
		return domain.Settings{}, err
	}
	s.mu.Lock()
	s.current = clean
	s.mu.Unlock()
	s.log.Info("settings saved",
		zap.String("notion_database_id", id),
		zap.Bool("imgbb", clean.ImgBBAPIKey != ""),
		zap.Bool("emailjs", clean.EmailConfigured()),
	)
	return clean, nil
}

func overlay(base, stored domain.Settings) domain.Settings {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&base.NotionToken, stored.NotionToken)
	pick(&base.NotionDatabaseID, stored.NotionDatabaseID)
	pick(&base.NotionTitleKey, stored.NotionTitleKey)
	pick(&base.ImgBBAPIKey, stored.ImgBBAPIKey)
	pick(&base.EmailJSServiceID, stored.EmailJSServiceID)
	pick(&base.EmailJSTemplateID, stored.EmailJSTemplateID)
	pick(&base.EmailJSPublicKey, stored.EmailJSPublicKey)
	pick(&base.EmailJSPrivateKey, stored.EmailJSPrivateKey)
	return base
}
