// Package memory provides process-local implementations of the repository
// interfaces, used by the memory storage backend and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

// RecordRepository implements usecase.RecordRepository in memory.
type RecordRepository struct {
	idGen usecase.IDGenerator

	mu      sync.RWMutex
	records map[string]*domain.Record
	order   map[string]uint64
	seq     uint64
}

// NewRecordRepository creates an empty RecordRepository.
func NewRecordRepository(idGen usecase.IDGenerator) *RecordRepository {
	return &RecordRepository{
		idGen:   idGen,
		records: make(map[string]*domain.Record),
		order:   make(map[string]uint64),
	}
}

// Query returns copies of the matching records, newest date first and in
// insertion order within a date.
func (r *RecordRepository) Query(ctx context.Context, filter usecase.RecordFilter) ([]*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Record, 0)
	for _, rec := range r.records {
		if filter.Owner != "" && rec.Owner != filter.Owner {
			continue
		}
		out = append(out, rec.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return r.order[out[i].ID] < r.order[out[j].ID]
	})

	return out, nil
}

// Insert stores a copy of record. An existing ID is left untouched.
func (r *RecordRepository) Insert(ctx context.Context, record *domain.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := record.Clone()
	if stored.ID == "" {
		stored.ID = r.idGen.Generate()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[stored.ID]; ok {
		return stored.ID, nil
	}

	r.seq++
	r.order[stored.ID] = r.seq
	r.records[stored.ID] = stored

	return stored.ID, nil
}

// Update applies patch to the owner's record.
func (r *RecordRepository) Update(ctx context.Context, id, owner string, patch domain.RecordPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.Owner != owner {
		return domain.ErrRecordNotFound
	}

	updated := rec.Clone()
	updated.Apply(patch)
	r.records[id] = updated

	return nil
}

// Delete removes the owner's record.
func (r *RecordRepository) Delete(ctx context.Context, id, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.Owner != owner {
		return domain.ErrRecordNotFound
	}

	delete(r.records, id)
	delete(r.order, id)

	return nil
}
