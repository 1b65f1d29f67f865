package inventory

import (
	"context"
	"testing"

	"workshop/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInventoryRepo struct {
	mock.Mock
}

func (m *mockInventoryRepo) ListInventoryItems(ctx context.Context) ([]*models.InventoryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.InventoryItem), args.Error(1)
}

func (m *mockInventoryRepo) GetInventoryItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

func TestService_RefreshAndItem(t *testing.T) {
	repo := new(mockInventoryRepo)
	logger := zerolog.Nop()
	ctx := context.Background()
	oil := &models.InventoryItem{ID: 1, Name: "Engine oil", Stock: 10, IsBulkProduct: true, BulkQuantity: 20}

	repo.On("ListInventoryItems", ctx).Return([]*models.InventoryItem{oil}, nil).Once()

	s := NewService(repo, &logger)
	require.NoError(t, s.Refresh(ctx))
	assert.Len(t, s.Items(ctx), 1)

	item, err := s.Item(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Engine oil", item.Name)

	repo.On("GetInventoryItem", ctx, int64(2)).Return(nil, assert.AnError).Once()
	_, err = s.Item(ctx, 2)
	assert.ErrorIs(t, err, assert.AnError)

	repo.AssertExpectations(t)
}

func TestService_Check(t *testing.T) {
	repo := new(mockInventoryRepo)
	logger := zerolog.Nop()
	ctx := context.Background()
	oil := &models.InventoryItem{ID: 1, Name: "Engine oil", Stock: 10, IsBulkProduct: true, BulkQuantity: 20, UnitOfMeasure: "litre"}

	repo.On("GetInventoryItem", ctx, int64(1)).Return(oil, nil).Twice()

	s := NewService(repo, &logger)
	check, item, err := s.Check(ctx, 1, 150)
	require.NoError(t, err)
	assert.True(t, check.IsValid)
	assert.Equal(t, oil, item)

	check, _, err = s.Check(ctx, 1, 201)
	require.NoError(t, err)
	assert.False(t, check.IsValid)

	repo.AssertExpectations(t)
}

func TestService_FreshUpdatesList(t *testing.T) {
	repo := new(mockInventoryRepo)
	logger := zerolog.Nop()
	ctx := context.Background()
	oil := &models.InventoryItem{ID: 1, Name: "Engine oil", Stock: 10}
	filter := &models.InventoryItem{ID: 2, Name: "Oil filter", Stock: 5}

	repo.On("ListInventoryItems", ctx).Return([]*models.InventoryItem{oil, filter}, nil).Once()
	s := NewService(repo, &logger)
	require.NoError(t, s.Refresh(ctx))
	before := s.Items(ctx)

	repo.On("GetInventoryItem", ctx, int64(2)).Return(&models.InventoryItem{ID: 2, Name: "Oil filter", Stock: 3}, nil).Once()
	repo.On("GetInventoryItem", ctx, int64(3)).Return(&models.InventoryItem{ID: 3, Name: "Wiper blade", Stock: 4}, nil).Once()

	_, err := s.Fresh(ctx, 2)
	require.NoError(t, err)
	_, err = s.Fresh(ctx, 3)
	require.NoError(t, err)

	items := s.Items(ctx)
	require.Len(t, items, 3)
	assert.Equal(t, float64(10), items[0].Stock)
	assert.Equal(t, float64(3), items[1].Stock)
	assert.Equal(t, "Wiper blade", items[2].Name)

	cached, err := s.Item(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, float64(3), cached.Stock)

	// earlier snapshots are not rewritten
	assert.Equal(t, float64(5), before[1].Stock)
	repo.AssertExpectations(t)
}
