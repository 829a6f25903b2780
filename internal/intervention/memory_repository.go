package intervention

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository for tests
// and for running without a database.
type InMemoryRepository struct {
	mu            sync.RWMutex
	interventions map[string]*Intervention
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		interventions: make(map[string]*Intervention),
	}
}

// Create stores a newly dispatched intervention.
func (r *InMemoryRepository) Create(_ context.Context, iv *Intervention) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *iv
	r.interventions[iv.ID] = &stored
	return nil
}

// Get retrieves an intervention by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Intervention, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	iv, ok := r.interventions[id]
	if !ok {
		return nil, ErrInterventionNotFound
	}
	copied := *iv
	return &copied, nil
}

// RecordResponse attaches the user's response to an intervention.
func (r *InMemoryRepository) RecordResponse(_ context.Context, id string, response Response, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	iv, ok := r.interventions[id]
	if !ok {
		return ErrInterventionNotFound
	}
	if iv.UserResponse != nil {
		return ErrAlreadyResponded
	}

	iv.UserResponse = &response
	iv.RespondedAt = &at
	return nil
}

// List retrieves recent interventions, newest first.
func (r *InMemoryRepository) List(_ context.Context, limit int) ([]*Intervention, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	interventions := make([]*Intervention, 0, len(r.interventions))
	for _, iv := range r.interventions {
		copied := *iv
		interventions = append(interventions, &copied)
	}
	sort.Slice(interventions, func(a, b int) bool {
		return interventions[a].TriggeredAt.After(interventions[b].TriggeredAt)
	})
	if limit > 0 && len(interventions) > limit {
		interventions = interventions[:limit]
	}
	return interventions, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
