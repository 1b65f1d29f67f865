package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"workshop/internal/models"
)

type memoryEntry struct {
	state     *models.EditState
	expiresAt time.Time
}

type MemoryEditStateRepository struct {
	states sync.Map
	ttl    time.Duration
}

func NewMemoryEditStateRepository(ttl time.Duration) *MemoryEditStateRepository {
	return &MemoryEditStateRepository{
		ttl: ttl,
	}
}

func (r *MemoryEditStateRepository) GetEditState(ctx context.Context, bookingID int64) (*models.EditState, error) {
	val, ok := r.states.Load(bookingID)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if r.expired(entry) {
		r.states.Delete(bookingID)
		return nil, nil
	}
	return entry.state, nil
}

func (r *MemoryEditStateRepository) SetEditState(ctx context.Context, state *models.EditState) error {
	entry := memoryEntry{state: state}
	if r.ttl > 0 {
		entry.expiresAt = time.Now().Add(r.ttl)
	}
	r.states.Store(state.BookingID, entry)
	return nil
}

func (r *MemoryEditStateRepository) ClearEditState(ctx context.Context, bookingID int64) error {
	r.states.Delete(bookingID)
	return nil
}

func (r *MemoryEditStateRepository) ListEditStates(ctx context.Context) ([]*models.EditState, error) {
	var states []*models.EditState
	r.states.Range(func(key, val interface{}) bool {
		entry := val.(memoryEntry)
		if r.expired(entry) {
			r.states.Delete(key)
			return true
		}
		states = append(states, entry.state)
		return true
	})
	sort.Slice(states, func(i, j int) bool { return states[i].BookingID < states[j].BookingID })
	return states, nil
}

func (r *MemoryEditStateRepository) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)
}
