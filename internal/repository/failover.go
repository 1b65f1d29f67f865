package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"workshop/internal/domain"
	"workshop/internal/models"
)

const recoveryInterval = time.Minute

// FailoverEditStateRepository uses the primary store until it fails, then serves
// from the fallback and retries the primary once per recoveryInterval.
type FailoverEditStateRepository struct {
	primary   domain.EditStateRepository
	fallback  domain.EditStateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverEditStateRepository(primary, fallback domain.EditStateRepository, logger *zerolog.Logger) *FailoverEditStateRepository {
	return &FailoverEditStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverEditStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	// Try to recover after recoveryInterval
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverEditStateRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary edit state repository failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverEditStateRepository) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary edit state repository recovered")
	}
}

func (r *FailoverEditStateRepository) GetEditState(ctx context.Context, bookingID int64) (*models.EditState, error) {
	if r.usePrimary() {
		state, err := r.primary.GetEditState(ctx, bookingID)
		if err == nil {
			r.markUp()
			return state, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetEditState(ctx, bookingID)
}

func (r *FailoverEditStateRepository) SetEditState(ctx context.Context, state *models.EditState) error {
	if r.usePrimary() {
		err := r.primary.SetEditState(ctx, state)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetEditState(ctx, state)
}

func (r *FailoverEditStateRepository) ClearEditState(ctx context.Context, bookingID int64) error {
	if r.usePrimary() {
		err := r.primary.ClearEditState(ctx, bookingID)
		if err == nil {
			r.markUp()
			// the fallback may still hold a copy written while the primary was down
			return r.fallback.ClearEditState(ctx, bookingID)
		}
		r.markDown(err)
	}
	return r.fallback.ClearEditState(ctx, bookingID)
}

func (r *FailoverEditStateRepository) ListEditStates(ctx context.Context) ([]*models.EditState, error) {
	if r.usePrimary() {
		states, err := r.primary.ListEditStates(ctx)
		if err == nil {
			r.markUp()
			return states, nil
		}
		r.markDown(err)
	}
	return r.fallback.ListEditStates(ctx)
}
