package personalization

import "context"

// Repository defines the interface for regret score persistence.
type Repository interface {
	// Get retrieves the record for a merchant key.
	// Returns ErrRecordNotFound if the merchant has never been seen.
	Get(ctx context.Context, merchantKey string) (*Record, error)

	// Upsert creates or replaces the record for a merchant key.
	Upsert(ctx context.Context, record *Record) error

	// List retrieves all records, most recently updated first.
	List(ctx context.Context) ([]*Record, error)
}
