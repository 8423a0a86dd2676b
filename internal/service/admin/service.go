package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/taporibrain/internal/client"
	"github.com/zhouzirui/taporibrain/internal/service/notify"
)

// Backend is the admin half of the API client.
type Backend interface {
	GetAdminConfig(ctx context.Context) (client.AdminConfig, error)
	UpdateAdminConfig(ctx context.Context, key string, value any) (*client.Ack, error)
	GetAdminStats(ctx context.Context) (*client.AdminStats, error)
	GetFeatureFlags(ctx context.Context) (client.FeatureFlags, error)
	UpdateFeatureFlag(ctx context.Context, key string, value bool) (*client.Ack, error)
}

// Dashboard is the last successfully loaded admin data.
type Dashboard struct {
	Config   client.AdminConfig  `json:"config"`
	Stats    *client.AdminStats  `json:"stats"`
	Features client.FeatureFlags `json:"features"`
	LoadedAt time.Time           `json:"loadedAt"`
}

// Service loads and edits the backend's admin settings.
type Service struct {
	backend Backend
	toasts  *notify.Feed
	logger  *zap.Logger

	mu        sync.RWMutex
	dashboard Dashboard
	loaded    bool
}

// NewService builds the admin service.
func NewService(backend Backend, toasts *notify.Feed, logger *zap.Logger) *Service {
	if toasts == nil {
		toasts = notify.NewFeed(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, toasts: toasts, logger: logger}
}

// Load fetches config, stats and feature flags concurrently. The dashboard
// only changes when all three succeed.
func (s *Service) Load(ctx context.Context) (Dashboard, error) {
	var (
		cfg   client.AdminConfig
		stats *client.AdminStats
		flags client.FeatureFlags
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		cfg, err = s.backend.GetAdminConfig(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		stats, err = s.backend.GetAdminStats(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		flags, err = s.backend.GetFeatureFlags(egCtx)
		return err
	})

	if err := eg.Wait(); err != nil {
		s.logger.Error("failed to load admin data", zap.Error(err))
		s.toasts.Error("Error", "Failed to load admin data")
		return Dashboard{}, fmt.Errorf("load admin data: %w", err)
	}

	d := Dashboard{Config: cfg, Stats: stats, Features: flags, LoadedAt: time.Now()}
	s.mu.Lock()
	s.dashboard = d
	s.loaded = true
	s.mu.Unlock()
	return d.clone(), nil
}

// Dashboard returns the cached data and whether anything was loaded yet.
func (s *Service) Dashboard() (Dashboard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dashboard.clone(), s.loaded
}

// UpdateConfig writes one config key and mirrors it locally on success.
func (s *Service) UpdateConfig(ctx context.Context, key string, value any) error {
	if _, err := s.backend.UpdateAdminConfig(ctx, key, value); err != nil {
		s.logger.Error("failed to update config", zap.String("key", key), zap.Error(err))
		s.toasts.Error("Error", "Failed to update configuration")
		return err
	}

	s.mu.Lock()
	if s.dashboard.Config != nil {
		s.dashboard.Config[key] = value
	}
	s.mu.Unlock()

	s.toasts.Info("Configuration updated", fmt.Sprintf("%s has been updated successfully", key))
	return nil
}

// UpdateFeature toggles one feature flag and mirrors it locally on success.
func (s *Service) UpdateFeature(ctx context.Context, key string, value bool) error {
	if _, err := s.backend.UpdateFeatureFlag(ctx, key, value); err != nil {
		s.logger.Error("failed to update feature flag", zap.String("key", key), zap.Error(err))
		s.toasts.Error("Error", "Failed to update feature flag")
		return err
	}

	s.mu.Lock()
	if s.dashboard.Features == nil {
		s.dashboard.Features = client.FeatureFlags{}
	}
	s.dashboard.Features[key] = value
	s.mu.Unlock()

	state := "disabled"
	if value {
		state = "enabled"
	}
	s.toasts.Info("Feature updated", fmt.Sprintf("%s has been %s", key, state))
	return nil
}

func (d Dashboard) clone() Dashboard {
	out := d
	if d.Config != nil {
		out.Config = make(client.AdminConfig, len(d.Config))
		for k, v := range d.Config {
			out.Config[k] = v
		}
	}
	if d.Features != nil {
		out.Features = make(client.FeatureFlags, len(d.Features))
		for k, v := range d.Features {
			out.Features[k] = v
		}
	}
	if d.Stats != nil {
		stats := *d.Stats
		out.Stats = &stats
	}
	return out
}
