package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"filmlog/internal/config"
	"filmlog/internal/logging"
	"filmlog/internal/services"
	"filmlog/internal/store"
)

// Engine computes analysis views from the store.
type Engine struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the clock used for trend windows and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New builds an Engine.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "analysis"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// syncedProfile loads username and rejects profiles that never completed a
// sync.
func (e *Engine) syncedProfile(ctx context.Context, operation, username string) (*store.Profile, error) {
	profile, err := e.store.GetProfile(ctx, username)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", operation, "read profile", err)
	}
	return requireSynced(operation, username, profile)
}

func requireSynced(operation, username string, profile *store.Profile) (*store.Profile, error) {
	if profile == nil {
		return nil, services.Wrap(services.ErrNotFound, "analysis", operation,
			fmt.Sprintf("profile %s not found", store.NormalizeUsername(username)), nil)
	}
	if !profile.Synced() {
		return nil, services.Wrap(services.ErrNotFound, "analysis", operation,
			fmt.Sprintf("profile %s has not been synced yet", profile.Username), nil)
	}
	return profile, nil
}
