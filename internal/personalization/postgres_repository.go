package personalization

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL personalization repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves the record for a merchant key.
func (r *PostgresRepository) Get(ctx context.Context, merchantKey string) (*Record, error) {
	query := `
		SELECT merchant_key, regret_score, last_updated
		FROM personalization_records
		WHERE merchant_key = $1
	`

	var record Record
	err := r.pool.QueryRow(ctx, query, merchantKey).Scan(
		&record.MerchantKey,
		&record.RegretScore,
		&record.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &record, nil
}

// Upsert creates or replaces the record for a merchant key.
func (r *PostgresRepository) Upsert(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO personalization_records (merchant_key, regret_score, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (merchant_key) DO UPDATE SET
			regret_score = EXCLUDED.regret_score,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.pool.Exec(ctx, query, record.MerchantKey, record.RegretScore, record.LastUpdated)
	return err
}

// List retrieves all records, most recently updated first.
func (r *PostgresRepository) List(ctx context.Context) ([]*Record, error) {
	query := `
		SELECT merchant_key, regret_score, last_updated
		FROM personalization_records
		ORDER BY last_updated DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.MerchantKey, &record.RegretScore, &record.LastUpdated); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
