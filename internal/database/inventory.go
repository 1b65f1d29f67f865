package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"workshop/internal/inventory"
	"workshop/internal/models"
)

const inventoryColumns = `id, code, name, category, stock, min_stock, unit_price, is_bulk_product,
        bulk_quantity, unit_of_measure, created_at, updated_at`

func (db *DB) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO inventory_items (code, name, category, stock, min_stock, unit_price, is_bulk_product,
        bulk_quantity, unit_of_measure, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Code, item.Name, item.Category, item.Stock, item.MinStock, item.UnitPrice,
		item.IsBulkProduct, item.BulkQuantity, item.UnitOfMeasure, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create inventory item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// SyncInventory обновляет справочник позиций из конфигурации по коду.
// Остатки существующих позиций не трогаем.
func (db *DB) SyncInventory(ctx context.Context, items []models.InventoryItem) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	for i := range items {
		item := items[i]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO inventory_items (code, name, category, stock, min_stock, unit_price, is_bulk_product,
            bulk_quantity, unit_of_measure, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(code) DO UPDATE SET name = excluded.name, category = excluded.category,
            min_stock = excluded.min_stock, unit_price = excluded.unit_price,
            is_bulk_product = excluded.is_bulk_product, bulk_quantity = excluded.bulk_quantity,
            unit_of_measure = excluded.unit_of_measure, updated_at = excluded.updated_at`,
			item.Code, item.Name, item.Category, item.Stock, item.MinStock, item.UnitPrice,
			item.IsBulkProduct, item.BulkQuantity, item.UnitOfMeasure, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to sync item %s: %w", item.Code, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inventory sync: %w", err)
	}
	db.logger.Info().Int("items", len(items)).Msg("inventory synced")
	return nil
}

func (db *DB) GetInventoryItem(ctx context.Context, id int64) (*models.InventoryItem, error) {
	row := db.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory_items WHERE id = ?`, id)
	item, err := scanInventoryItem(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("inventory item %d", id))
	}
	return item, nil
}

func (db *DB) ListInventoryItems(ctx context.Context) ([]*models.InventoryItem, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+inventoryColumns+` FROM inventory_items ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	defer rows.Close()

	var items []*models.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CommitDeduction списывает остатки по счету. Количества приходят в единицах
// расхода; для bulk-позиций они переводятся в тару перед списанием.
// Списание выполняется целиком или не выполняется вовсе.
func (db *DB) CommitDeduction(ctx context.Context, deductions map[int64]float64) error {
	if len(deductions) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(deductions))
	for id := range deductions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	for _, id := range ids {
		var (
			isBulk  bool
			bulkQty float64
		)
		err = tx.QueryRowContext(ctx,
			`SELECT is_bulk_product, bulk_quantity FROM inventory_items WHERE id = ?`, id).Scan(&isBulk, &bulkQty)
		if err != nil {
			err = notFound(err, fmt.Sprintf("inventory item %d", id))
			return err
		}

		delta := inventory.Consumables(deductions[id]).
			InContainers(inventory.Packaging{IsBulk: isBulk, BulkQuantity: bulkQty})

		_, err = tx.ExecContext(ctx,
			`UPDATE inventory_items SET stock = stock - ?, updated_at = ? WHERE id = ?`, delta.Amount, now, id)
		if err != nil {
			return fmt.Errorf("failed to deduct stock for item %d: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deduction: %w", err)
	}

	db.logger.Info().Int("items", len(ids)).Msg("inventory deducted")
	return nil
}

func scanInventoryItem(row rowScanner) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := row.Scan(&item.ID, &item.Code, &item.Name, &item.Category, &item.Stock, &item.MinStock,
		&item.UnitPrice, &item.IsBulkProduct, &item.BulkQuantity, &item.UnitOfMeasure,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
