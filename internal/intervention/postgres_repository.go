package intervention

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pigeonline/pigeon/internal/risk"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL intervention repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create stores a newly dispatched intervention.
func (r *PostgresRepository) Create(ctx context.Context, iv *Intervention) error {
	query := `
		INSERT INTO interventions (
			id, zone_key, triggered_at, message,
			probability, risk_level, model_type
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		iv.ID, iv.ZoneKey, iv.TriggeredAt, iv.Message,
		iv.Probability, string(iv.RiskLevel), string(iv.ModelType),
	)
	return err
}

// Get retrieves an intervention by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Intervention, error) {
	query := `
		SELECT id, zone_key, triggered_at, message,
			probability, risk_level, model_type,
			user_response, responded_at
		FROM interventions
		WHERE id = $1
	`

	return r.scanIntervention(ctx, query, id)
}

// RecordResponse attaches the user's response to an intervention. The WHERE
// clause enforces respond-once semantics at the storage layer.
func (r *PostgresRepository) RecordResponse(ctx context.Context, id string, response Response, at time.Time) error {
	query := `
		UPDATE interventions
		SET user_response = $2, responded_at = $3
		WHERE id = $1 AND user_response IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, id, string(response), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already responded; look it up to tell which.
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyResponded
	}
	return nil
}

// List retrieves recent interventions, newest first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*Intervention, error) {
	query := `
		SELECT id, zone_key, triggered_at, message,
			probability, risk_level, model_type,
			user_response, responded_at
		FROM interventions
		ORDER BY triggered_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interventions []*Intervention
	for rows.Next() {
		iv, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		interventions = append(interventions, iv)
	}
	return interventions, rows.Err()
}

func (r *PostgresRepository) scanIntervention(ctx context.Context, query string, args ...any) (*Intervention, error) {
	iv, err := scanRow(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInterventionNotFound
		}
		return nil, err
	}
	return iv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*Intervention, error) {
	var (
		iv          Intervention
		riskLevel   string
		modelType   string
		response    *string
		respondedAt *time.Time
	)

	err := row.Scan(
		&iv.ID, &iv.ZoneKey, &iv.TriggeredAt, &iv.Message,
		&iv.Probability, &riskLevel, &modelType,
		&response, &respondedAt,
	)
	if err != nil {
		return nil, err
	}

	iv.RiskLevel = risk.Level(riskLevel)
	iv.ModelType = risk.ModelType(modelType)
	if response != nil {
		resp := Response(*response)
		iv.UserResponse = &resp
		iv.RespondedAt = respondedAt
	}
	return &iv, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
