package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"workshop/internal/models"
)

// CreateInvoice сохраняет счет вместе со строками и присваивает номер
func (db *DB) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
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
	result, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (customer_name, date, total, created_at) VALUES (?, ?, ?, ?)`,
		invoice.CustomerName, invoice.Date.Format(models.DateLayout), invoice.Total, now)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invoice id: %w", err)
	}

	number := fmt.Sprintf("INV-%s-%05d", invoice.Date.Format("20060102"), id)
	if _, err = tx.ExecContext(ctx, `UPDATE invoices SET number = ? WHERE id = ?`, number, id); err != nil {
		return fmt.Errorf("failed to number invoice: %w", err)
	}

	for _, line := range invoice.LineItems {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO invoice_line_items (invoice_id, description, quantity, unit_price, total, tax_rate,
            price_override, inventory_item_id)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, line.Description, line.Quantity, line.UnitPrice, line.Total, line.TaxRate,
			line.PriceOverride, nullableID(line.InventoryItemID))
		if err != nil {
			return fmt.Errorf("failed to create invoice line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invoice: %w", err)
	}

	invoice.ID = id
	invoice.Number = number
	invoice.CreatedAt = now
	return nil
}

func (db *DB) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	var (
		invoice models.Invoice
		date    string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, number, customer_name, date, total, created_at FROM invoices WHERE id = ?`, id).
		Scan(&invoice.ID, &invoice.Number, &invoice.CustomerName, &date, &invoice.Total, &invoice.CreatedAt)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("invoice %d", id))
	}
	if invoice.Date, err = parseDate(date); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT description, quantity, unit_price, total, tax_rate, price_override, inventory_item_id
        FROM invoice_line_items WHERE invoice_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line   models.InvoiceLineItem
			itemID sql.NullInt64
		)
		if err := rows.Scan(&line.Description, &line.Quantity, &line.UnitPrice, &line.Total,
			&line.TaxRate, &line.PriceOverride, &itemID); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		line.InventoryItemID = idPointer(itemID)
		invoice.LineItems = append(invoice.LineItems, line)
	}
	return &invoice, rows.Err()
}
