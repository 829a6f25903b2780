package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL settings repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, key string) (*Setting, error) {
	query := `
		SELECT key, value, updated_at
		FROM monitor_settings
		WHERE key = $1
	`

	var (
		setting   Setting
		valueJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, key).Scan(
		&setting.Key,
		&valueJSON,
		&setting.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(valueJSON, &setting.Value); err != nil {
		return nil, err
	}
	return &setting, nil
}

// GetAll implements Repository.
func (r *PostgresRepository) GetAll(ctx context.Context) (map[string]*Setting, error) {
	query := `
		SELECT key, value, updated_at
		FROM monitor_settings
		ORDER BY key
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]*Setting)
	for rows.Next() {
		var (
			setting   Setting
			valueJSON []byte
		)
		if err := rows.Scan(&setting.Key, &valueJSON, &setting.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(valueJSON, &setting.Value); err != nil {
			return nil, err
		}
		result[setting.Key] = &setting
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Set implements Repository.
func (r *PostgresRepository) Set(ctx context.Context, setting *Setting) error {
	query := `
		INSERT INTO monitor_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`

	valueJSON, err := json.Marshal(setting.Value)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query, setting.Key, valueJSON, time.Now())
	return err
}

// SetMany implements Repository.
func (r *PostgresRepository) SetMany(ctx context.Context, settings []*Setting) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback error is not critical

	query := `
		INSERT INTO monitor_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now()
	for _, setting := range settings {
		valueJSON, err := json.Marshal(setting.Value)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, setting.Key, valueJSON, now); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Delete implements Repository.
func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM monitor_settings WHERE key = $1`
	_, err := r.pool.Exec(ctx, query, key)
	return err
}

var _ Repository = (*PostgresRepository)(nil)
