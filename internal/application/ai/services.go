package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/moto-intake/internal/domain/ai"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
)

// Service wraps the provider call with a fixed attempt budget. Only ai.ErrOverloaded is retried,
// with exponential backoff; every other error fails immediately.
type Service struct {
	client         ai.Client
	maxAttempts    int
	initialBackoff time.Duration
	timeout        time.Duration
	log            *zap.Logger

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts sets the attempt budget (values below 1 mean 1).
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.maxAttempts = n
	}
}

// WithInitialBackoff sets the delay before the second attempt; it doubles afterwards.
func WithInitialBackoff(d time.Duration) Option {
	return func(s *Service) { s.initialBackoff = d }
}

// WithAttemptTimeout bounds every single provider call; zero means no limit.
func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(client ai.Client, opts ...Option) *Service {
	s := &Service{
		client:         client,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		log:            zap.NewNop(),
		sleep:          sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Model is the provider model name, recorded with each result.
func (s *Service) Model() string {
	return s.client.Model()
}

func (s *Service) Analyze(ctx context.Context, req ai.Request) (ai.Result, error) {
	delay := s.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		res, err := s.attempt(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, ai.ErrOverloaded) || attempt == s.maxAttempts {
			break
		}
		s.log.Warn("ai model overloaded, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return ai.Result{}, err
		}
		delay *= 2
	}
	if errors.Is(lastErr, ai.ErrOverloaded) {
		return ai.Result{}, fmt.Errorf("gave up after %d attempts: %w", s.maxAttempts, lastErr)
	}
	return ai.Result{}, lastErr
}

func (s *Service) attempt(ctx context.Context, req ai.Request) (ai.Result, error) {
	if s.timeout <= 0 {
		return s.client.Analyze(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Analyze(ctx, req)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
