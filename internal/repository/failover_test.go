package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"workshop/internal/models"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetEditState(ctx context.Context, bookingID int64) (*models.EditState, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EditState), args.Error(1)
}

func (m *mockRepo) SetEditState(ctx context.Context, state *models.EditState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockRepo) ClearEditState(ctx context.Context, bookingID int64) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

func (m *mockRepo) ListEditStates(ctx context.Context) ([]*models.EditState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EditState), args.Error(1)
}

func TestFailoverEditStateRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverEditStateRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		state := newEditState(1, models.EditPending)
		primary.On("GetEditState", ctx, int64(1)).Return(state, nil).Once()

		got, err := repo.GetEditState(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		state := newEditState(2, models.EditPending)
		primary.On("GetEditState", ctx, int64(2)).Return(nil, errors.New("fail")).Once()
		fallback.On("GetEditState", ctx, int64(2)).Return(state, nil).Once()

		got, err := repo.GetEditState(ctx, 2)
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		state := newEditState(3, models.EditCommitted)
		fallback.On("SetEditState", ctx, state).Return(nil).Once()
		fallback.On("ListEditStates", ctx).Return([]*models.EditState{state}, nil).Once()

		assert.NoError(t, repo.SetEditState(ctx, state))
		states, err := repo.ListEditStates(ctx)
		assert.NoError(t, err)
		assert.Len(t, states, 1)
		primary.AssertNotCalled(t, "SetEditState", ctx, state)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoversAfterInterval", func(t *testing.T) {
		repo.lastCheck.Store(time.Now().Add(-2 * recoveryInterval).UnixNano())
		primary.On("ClearEditState", ctx, int64(3)).Return(nil).Once()
		fallback.On("ClearEditState", ctx, int64(3)).Return(nil).Once()

		assert.NoError(t, repo.ClearEditState(ctx, 3))
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
