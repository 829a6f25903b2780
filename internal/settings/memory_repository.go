package settings

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps settings in memory. Used when the daemon runs
// without a database; changes do not survive a restart.
type InMemoryRepository struct {
	mu       sync.RWMutex
	settings map[string]*Setting
}

// NewInMemoryRepository creates an empty in-memory repository. Reads fall
// through to defaults at the service layer.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{settings: make(map[string]*Setting)}
}

// Get implements Repository.
func (r *InMemoryRepository) Get(_ context.Context, key string) (*Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[key]
	if !ok {
		return nil, ErrSettingNotFound
	}
	cp := *s
	return &cp, nil
}

// GetAll implements Repository.
func (r *InMemoryRepository) GetAll(_ context.Context) (map[string]*Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Setting, len(r.settings))
	for k, v := range r.settings {
		cp := *v
		result[k] = &cp
	}
	return result, nil
}

// Set implements Repository.
func (r *InMemoryRepository) Set(_ context.Context, setting *Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[setting.Key] = &Setting{
		Key:       setting.Key,
		Value:     setting.Value,
		UpdatedAt: time.Now(),
	}
	return nil
}

// SetMany implements Repository.
func (r *InMemoryRepository) SetMany(ctx context.Context, settings []*Setting) error {
	for _, s := range settings {
		if err := r.Set(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements Repository.
func (r *InMemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.settings, key)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
