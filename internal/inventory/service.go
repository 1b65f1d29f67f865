package inventory

import (
	"context"
	"fmt"
	"sync"

	"workshop/internal/domain"
	"workshop/internal/models"

	"github.com/rs/zerolog"
)

// Service keeps an in-memory copy of inventory items for invoice construction.
type Service struct {
	repo     domain.InventoryRepository
	logger   *zerolog.Logger
	items    []*models.InventoryItem
	itemsMap map[int64]*models.InventoryItem
	mu       sync.RWMutex
}

func NewService(repo domain.InventoryRepository, logger *zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		itemsMap: make(map[int64]*models.InventoryItem),
	}
}

func (s *Service) Items(ctx context.Context) []*models.InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.InventoryItem, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns the cached item, falling back to the store on a miss.
func (s *Service) Item(ctx context.Context, id int64) (*models.InventoryItem, error) {
	s.mu.RLock()
	item, ok := s.itemsMap[id]
	s.mu.RUnlock()
	if ok {
		return item, nil
	}

	item, err := s.repo.GetInventoryItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inventory item %d: %w", id, err)
	}
	return item, nil
}

// Fresh reads the item from the store, bypassing the cache. Used where stock must be current.
func (s *Service) Fresh(ctx context.Context, id int64) (*models.InventoryItem, error) {
	item, err := s.repo.GetInventoryItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inventory item %d: %w", id, err)
	}
	s.mu.Lock()
	s.storeLocked(item)
	s.mu.Unlock()
	return item, nil
}

// storeLocked replaces the cached copy of item in both the list and the index.
func (s *Service) storeLocked(item *models.InventoryItem) {
	if _, ok := s.itemsMap[item.ID]; ok {
		items := make([]*models.InventoryItem, len(s.items))
		copy(items, s.items)
		for i, cached := range items {
			if cached.ID == item.ID {
				items[i] = item
			}
		}
		s.items = items
	} else {
		s.items = append(s.items, item)
	}
	s.itemsMap[item.ID] = item
}

func (s *Service) Refresh(ctx context.Context) error {
	items, err := s.repo.ListInventoryItems(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.itemsMap = make(map[int64]*models.InventoryItem, len(items))
	for _, item := range items {
		s.itemsMap[item.ID] = item
	}
	s.logger.Debug().Int("items", len(items)).Msg("inventory cache refreshed")
	return nil
}

// Check runs the sufficiency check for a consumption quantity against the current stock.
func (s *Service) Check(ctx context.Context, itemID int64, requested float64) (StockCheck, *models.InventoryItem, error) {
	item, err := s.Fresh(ctx, itemID)
	if err != nil {
		return StockCheck{}, nil, err
	}
	return ValidateSufficientStock(requested, item.Stock, item.IsBulkProduct, item.BulkQuantity, item.UnitOfMeasure), item, nil
}
