package personalization

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository for tests
// and for running without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]Record),
	}
}

// Get retrieves the record for a merchant key.
func (r *InMemoryRepository) Get(_ context.Context, merchantKey string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[merchantKey]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &record, nil
}

// Upsert creates or replaces the record for a merchant key.
func (r *InMemoryRepository) Upsert(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[record.MerchantKey] = *record
	return nil
}

// List retrieves all records, most recently updated first.
func (r *InMemoryRepository) List(_ context.Context) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*Record, 0, len(r.records))
	for key := range r.records {
		record := r.records[key]
		records = append(records, &record)
	}
	sort.Slice(records, func(a, b int) bool {
		return records[a].LastUpdated.After(records[b].LastUpdated)
	})
	return records, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
