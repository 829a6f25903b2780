package settings

import (
	"context"
	"errors"
)

// ErrSettingNotFound is returned when a setting is not stored.
var ErrSettingNotFound = errors.New("setting not found")

// Repository defines the interface for settings storage.
type Repository interface {
	// Get retrieves a single setting by key.
	Get(ctx context.Context, key string) (*Setting, error)

	// GetAll retrieves all stored settings.
	GetAll(ctx context.Context) (map[string]*Setting, error)

	// Set creates or updates a setting.
	Set(ctx context.Context, setting *Setting) error

	// SetMany creates or updates multiple settings atomically.
	SetMany(ctx context.Context, settings []*Setting) error

	// Delete removes a setting, reverting it to its default.
	Delete(ctx context.Context, key string) error
}
