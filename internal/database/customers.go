package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"workshop/internal/models"
)

const customerColumns = `id, name, phone, email, status, last_visit, total_spend, visit_count, created_at, updated_at`

func (db *DB) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.Status == "" {
		customer.Status = models.CustomerStatusActive
	}
	now := time.Now()

	var lastVisit sql.NullTime
	if customer.LastVisit != nil {
		lastVisit = sql.NullTime{Time: *customer.LastVisit, Valid: true}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO customers (name, phone, email, status, last_visit, total_spend, visit_count, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.Name, customer.Phone, customer.Email, customer.Status, lastVisit,
		customer.TotalSpend, customer.VisitCount, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get customer id: %w", err)
	}
	customer.ID = id
	customer.CreatedAt = now
	customer.UpdatedAt = now
	return nil
}

func (db *DB) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	row := db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("customer %d", id))
	}
	return customer, nil
}

// GetCustomerByPhone ищет клиента по телефону; при дублях берется самый ранний
func (db *DB) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE phone = ? ORDER BY id LIMIT 1`, phone)
	customer, err := scanCustomer(row)
	if err != nil {
		return nil, notFound(err, "customer with phone "+phone)
	}
	return customer, nil
}

// UpdateCustomer применяет только заполненные поля патча
func (db *DB) UpdateCustomer(ctx context.Context, id int64, patch models.CustomerPatch) error {
	if patch.Empty() {
		return nil
	}

	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if patch.LastVisit != nil {
		sets = append(sets, "last_visit = ?")
		args = append(args, *patch.LastVisit)
	}
	if patch.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *patch.Email)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), id)

	result, err := db.ExecContext(ctx,
		`UPDATE customers SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return nil
}

// RecordVisit сохраняет визит и пересчитывает total_spend, visit_count и last_visit
// в одной транзакции.
func (db *DB) RecordVisit(ctx context.Context, customerID, bookingID int64, amount decimal.Decimal, at time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE id = ?`, customerID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check customer: %w", err)
	}
	if exists == 0 {
		err = fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO customer_visits (customer_id, booking_id, amount, visited_at) VALUES (?, ?, ?, ?)`,
		customerID, bookingID, amount, at)
	if err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	total, count, err := sumVisits(ctx, tx, customerID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE customers SET total_spend = ?, visit_count = ?, last_visit = ?, updated_at = ? WHERE id = ?`,
		total, count, at, time.Now(), customerID)
	if err != nil {
		return fmt.Errorf("failed to update customer totals: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit visit: %w", err)
	}
	return nil
}

func sumVisits(ctx context.Context, tx *sql.Tx, customerID int64) (decimal.Decimal, int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT amount FROM customer_visits WHERE customer_id = ?`, customerID)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to load visits: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	count := 0
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, 0, fmt.Errorf("failed to scan visit: %w", err)
		}
		total = total.Add(amount)
		count++
	}
	return total, count, rows.Err()
}

func (db *DB) ListVisits(ctx context.Context, customerID int64) ([]models.CustomerVisit, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, customer_id, booking_id, amount, visited_at FROM customer_visits WHERE customer_id = ? ORDER BY id`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	var visits []models.CustomerVisit
	for rows.Next() {
		var v models.CustomerVisit
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.BookingID, &v.Amount, &v.VisitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// FindVehicle ищет точное совпадение описания автомобиля у клиента
func (db *DB) FindVehicle(ctx context.Context, customerID int64, vehicle string) (*models.VehicleInfo, error) {
	var v models.VehicleInfo
	err := db.QueryRowContext(ctx,
		`SELECT id, customer_id, vehicle, created_at FROM vehicle_info WHERE customer_id = ? AND vehicle = ? ORDER BY id LIMIT 1`,
		customerID, vehicle).Scan(&v.ID, &v.CustomerID, &v.Vehicle, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err, "vehicle "+vehicle)
	}
	return &v, nil
}

func (db *DB) AddVehicle(ctx context.Context, info *models.VehicleInfo) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO vehicle_info (customer_id, vehicle, created_at) VALUES (?, ?, ?)`,
		info.CustomerID, info.Vehicle, now)
	if err != nil {
		return fmt.Errorf("failed to add vehicle: %w", err)
	}
	if info.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get vehicle id: %w", err)
	}
	info.CreatedAt = now
	return nil
}

func (db *DB) ListVehicles(ctx context.Context, customerID int64) ([]models.VehicleInfo, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, customer_id, vehicle, created_at FROM vehicle_info WHERE customer_id = ? ORDER BY id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.VehicleInfo
	for rows.Next() {
		var v models.VehicleInfo
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.Vehicle, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (db *DB) AddNote(ctx context.Context, note *models.CustomerNote) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO customer_notes (customer_id, note, created_at) VALUES (?, ?, ?)`,
		note.CustomerID, note.Note, now)
	if err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	if note.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get note id: %w", err)
	}
	note.CreatedAt = now
	return nil
}

func (db *DB) ListNotes(ctx context.Context, customerID int64) ([]models.CustomerNote, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, customer_id, note, created_at FROM customer_notes WHERE customer_id = ? ORDER BY id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []models.CustomerNote
	for rows.Next() {
		var n models.CustomerNote
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.Note, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	var (
		customer  models.Customer
		lastVisit sql.NullTime
	)
	err := row.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Email, &customer.Status,
		&lastVisit, &customer.TotalSpend, &customer.VisitCount, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastVisit.Valid {
		t := lastVisit.Time
		customer.LastVisit = &t
	}
	return &customer, nil
}
