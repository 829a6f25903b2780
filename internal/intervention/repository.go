package intervention

import (
	"context"
	"time"
)

// Repository defines the interface for intervention persistence.
type Repository interface {
	// Create stores a newly dispatched intervention.
	Create(ctx context.Context, iv *Intervention) error

	// Get retrieves an intervention by ID.
	Get(ctx context.Context, id string) (*Intervention, error)

	// RecordResponse attaches the user's response to an intervention.
	// Returns ErrAlreadyResponded if a response was recorded before.
	RecordResponse(ctx context.Context, id string, response Response, at time.Time) error

	// List retrieves recent interventions, newest first, up to limit.
	List(ctx context.Context, limit int) ([]*Intervention, error)
}
