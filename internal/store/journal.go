package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
)

const defaultJournalCapacity = 256

// MemoryJournal keeps the most recent mediation outcomes in a ring buffer.
type MemoryJournal struct {
	mu       sync.RWMutex
	entries  []domain.MediationOutcome
	next     int
	full     bool
	capacity int
}

func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = defaultJournalCapacity
	}
	return &MemoryJournal{
		entries:  make([]domain.MediationOutcome, capacity),
		capacity: capacity,
	}
}

func (j *MemoryJournal) Append(_ context.Context, outcome *domain.MediationOutcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[j.next] = *outcome
	j.next = (j.next + 1) % j.capacity
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// List returns up to limit outcomes, newest first. A non-positive limit returns all.
func (j *MemoryJournal) List(_ context.Context, limit int) ([]domain.MediationOutcome, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := j.next
	if j.full {
		n = j.capacity
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.MediationOutcome, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (j.next - 1 - i + j.capacity) % j.capacity
		out = append(out, j.entries[idx])
	}
	return out, nil
}

func (j *MemoryJournal) GetByID(ctx context.Context, id uuid.UUID) (*domain.MediationOutcome, error) {
	all, _ := j.List(ctx, 0)
	for i := range all {
		if all[i].SessionID == id {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}
