package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the settings service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL bounds how stale an in-memory read may be. Default: 1m.
	CacheTTL time.Duration

	Defaults map[string]*Setting
}

// Service provides settings reads with caching and default fallback. A
// storage failure never surfaces to the monitoring pipeline; reads degrade
// to defaults.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	cacheTTL time.Duration
	defaults map[string]*Setting

	mu          sync.RWMutex
	cache       map[string]*Setting
	cacheExpiry time.Time
}

// NewService creates a new settings service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 1 * time.Minute
	}
	defaults := cfg.Defaults
	if defaults == nil {
		defaults = DefaultSettings()
	}
	return &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger.With().Str("component", "settings").Logger(),
		cacheTTL: cacheTTL,
		defaults: defaults,
		cache:    make(map[string]*Setting),
	}
}

// Get retrieves a setting by key, reading the cache first and falling back
// to the stored value, then to the default.
func (s *Service) Get(ctx context.Context, key string) *Setting {
	if setting := s.getCached(key); setting != nil {
		return setting
	}

	setting, err := s.repo.Get(ctx, key)
	if err == nil {
		s.setCached(key, setting)
		return setting
	}
	if !errors.Is(err, ErrSettingNotFound) {
		s.logger.Warn().Err(err).Str("setting", key).Msg("settings read failed, using default")
	}

	return s.defaults[key]
}

// GetAll returns every setting: stored values merged over defaults.
func (s *Service) GetAll(ctx context.Context) map[string]*Setting {
	result := make(map[string]*Setting, len(s.defaults))
	for k, v := range s.defaults {
		result[k] = v
	}

	stored, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("settings read failed, using defaults")
		return result
	}
	for k, v := range stored {
		result[k] = v
	}

	s.mu.Lock()
	s.cache = stored
	s.cacheExpiry = time.Now().Add(s.cacheTTL)
	s.mu.Unlock()

	return result
}

// Set updates a single setting.
func (s *Service) Set(ctx context.Context, setting *Setting) error {
	setting.UpdatedAt = time.Now()
	if err := s.repo.Set(ctx, setting); err != nil {
		return err
	}
	s.setCached(setting.Key, setting)
	return nil
}

// SetMany updates multiple settings atomically.
func (s *Service) SetMany(ctx context.Context, updates []*Setting) error {
	now := time.Now()
	for _, u := range updates {
		u.UpdatedAt = now
	}
	if err := s.repo.SetMany(ctx, updates); err != nil {
		return err
	}

	s.mu.Lock()
	for _, u := range updates {
		s.cache[u.Key] = u
	}
	s.mu.Unlock()
	return nil
}

// InvalidateCache forces the next read to hit storage.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Setting)
	s.cacheExpiry = time.Time{}
}

func (s *Service) getCached(key string) *Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, setting *Setting) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = setting
	if s.cacheExpiry.Before(time.Now()) {
		s.cacheExpiry = time.Now().Add(s.cacheTTL)
	}
}

// Convenience reads for well-known settings.

// MonitoringEnabled reports whether the session should run at all.
func (s *Service) MonitoringEnabled(ctx context.Context) bool {
	return s.Get(ctx, KeyMonitoringEnabled).BoolValue(true)
}

// NotificationsEnabled reports whether dispatch may deliver notifications.
func (s *Service) NotificationsEnabled(ctx context.Context) bool {
	return s.Get(ctx, KeyNotificationsEnabled).BoolValue(true)
}

// NotificationThreshold returns the risk probability floor for notifying.
// Values outside (0,1] revert to the stored default.
func (s *Service) NotificationThreshold(ctx context.Context) float64 {
	v := s.Get(ctx, KeyNotificationThreshold).Float64Value(0.70)
	if v <= 0 || v > 1 {
		return 0.70
	}
	return v
}

// PreferredMode returns "geofence" or "polling".
func (s *Service) PreferredMode(ctx context.Context) string {
	mode := s.Get(ctx, KeyPreferredMode).StringValue("geofence")
	if mode != "geofence" && mode != "polling" {
		return "geofence"
	}
	return mode
}

// PollInterval returns the polling-mode sample interval.
func (s *Service) PollInterval(ctx context.Context) time.Duration {
	secs := s.Get(ctx, KeyPollIntervalS).IntValue(30)
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}
