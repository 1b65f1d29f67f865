package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"workshop/internal/domain"
	"workshop/internal/models"
)

// BookingBoard is the in-memory booking list the UI reads. Edits are applied to it
// before they are persisted and every edit is tracked as pending, committed or
// rolled back, so undoing a failed write restores the previous record instead of
// waiting for a re-fetch.
type BookingBoard struct {
	mu       sync.RWMutex
	bookings []*models.Booking
	edits    map[int64]*models.EditState
	states   domain.EditStateRepository
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBookingBoard(states domain.EditStateRepository, logger *zerolog.Logger) *BookingBoard {
	return &BookingBoard{
		edits:  make(map[int64]*models.EditState),
		states: states,
		logger: logger,
		now:    time.Now,
	}
}

// Bookings returns a copy of the current list.
func (b *BookingBoard) Bookings() []*models.Booking {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*models.Booking, len(b.bookings))
	for i, booking := range b.bookings {
		out[i] = booking.Clone()
	}
	return out
}

// Booking returns one booking from the list.
func (b *BookingBoard) Booking(id int64) (*models.Booking, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := b.indexLocked(id); i >= 0 {
		return b.bookings[i].Clone(), true
	}
	return nil, false
}

// Replace swaps in the canonical list read from the store.
func (b *BookingBoard) Replace(bookings []*models.Booking) {
	list := make([]*models.Booking, len(bookings))
	for i, booking := range bookings {
		list[i] = booking.Clone()
	}
	b.mu.Lock()
	b.bookings = list
	b.mu.Unlock()
}

// ApplyOptimistic puts proposed into the list ahead of the write and records a pending edit.
func (b *BookingBoard) ApplyOptimistic(ctx context.Context, proposed *models.Booking) *models.EditState {
	b.mu.Lock()
	state := &models.EditState{
		BookingID: proposed.ID,
		Status:    models.EditPending,
		Proposed:  proposed.Clone(),
		UpdatedAt: b.now(),
	}
	if i := b.indexLocked(proposed.ID); i >= 0 {
		state.Previous = b.bookings[i].Clone()
		b.bookings[i] = proposed.Clone()
	} else {
		b.bookings = append(b.bookings, proposed.Clone())
	}
	b.edits[proposed.ID] = state
	snapshot := cloneState(state)
	b.mu.Unlock()

	b.persist(ctx, snapshot)
	return snapshot
}

// Commit marks the pending edit for id as written.
func (b *BookingBoard) Commit(ctx context.Context, id int64) {
	b.transition(ctx, id, models.EditCommitted, "")
}

// Rollback restores the record that was on the board before the pending edit.
func (b *BookingBoard) Rollback(ctx context.Context, id int64, cause error) {
	b.mu.Lock()
	state := b.edits[id]
	if state == nil {
		b.mu.Unlock()
		state = b.loadState(ctx, id)
		b.mu.Lock()
	}
	if state != nil && state.Status == models.EditPending {
		i := b.indexLocked(id)
		switch {
		case state.Previous != nil && i >= 0:
			b.bookings[i] = state.Previous.Clone()
		case state.Previous != nil:
			b.bookings = append(b.bookings, state.Previous.Clone())
		case i >= 0:
			b.bookings = append(b.bookings[:i], b.bookings[i+1:]...)
		}
		b.edits[id] = state
	}
	b.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	b.transition(ctx, id, models.EditRolledBack, msg)
}

// EditState returns the latest tracked edit for id.
func (b *BookingBoard) EditState(ctx context.Context, id int64) *models.EditState {
	b.mu.RLock()
	state := b.edits[id]
	b.mu.RUnlock()
	if state != nil {
		return cloneState(state)
	}
	return b.loadState(ctx, id)
}

// EditStates lists persisted edit states; falls back to the local ones if the store fails.
func (b *BookingBoard) EditStates(ctx context.Context) []*models.EditState {
	if b.states != nil {
		states, err := b.states.ListEditStates(ctx)
		if err == nil {
			return states
		}
		b.logger.Error().Err(err).Msg("failed to list edit states")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*models.EditState, 0, len(b.edits))
	for _, state := range b.edits {
		out = append(out, cloneState(state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out
}

func (b *BookingBoard) transition(ctx context.Context, id int64, status, errMsg string) {
	b.mu.Lock()
	state := b.edits[id]
	if state == nil {
		state = &models.EditState{BookingID: id}
		b.edits[id] = state
	}
	state.Status = status
	state.Error = errMsg
	state.UpdatedAt = b.now()
	snapshot := cloneState(state)
	b.mu.Unlock()

	b.persist(ctx, snapshot)
}

func (b *BookingBoard) persist(ctx context.Context, state *models.EditState) {
	if b.states == nil {
		return
	}
	if err := b.states.SetEditState(ctx, state); err != nil {
		b.logger.Error().Err(err).Int64("booking_id", state.BookingID).Str("status", state.Status).Msg("failed to persist edit state")
	}
}

func (b *BookingBoard) loadState(ctx context.Context, id int64) *models.EditState {
	if b.states == nil {
		return nil
	}
	state, err := b.states.GetEditState(ctx, id)
	if err != nil {
		b.logger.Error().Err(err).Int64("booking_id", id).Msg("failed to load edit state")
		return nil
	}
	return state
}

func (b *BookingBoard) indexLocked(id int64) int {
	for i, booking := range b.bookings {
		if booking.ID == id {
			return i
		}
	}
	return -1
}

func cloneState(s *models.EditState) *models.EditState {
	if s == nil {
		return nil
	}
	c := *s
	c.Previous = s.Previous.Clone()
	c.Proposed = s.Proposed.Clone()
	return &c
}
