package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"workshop/internal/models"
)

const bookingColumns = `id, ref, customer_name, customer_phone, customer_email, vehicle, service,
        date, time, duration, status, cost, technician_id, service_id, bay_id, notes,
        created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// CreateBooking создает новое бронирование и выдает ему ref, если его нет
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.Ref == "" {
		booking.Ref = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	now := time.Now()

	query := `INSERT INTO bookings (ref, customer_name, customer_phone, customer_email, vehicle, service,
        date, time, duration, status, cost, technician_id, service_id, bay_id, notes, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := db.ExecContext(ctx, query,
		booking.Ref, booking.CustomerName, booking.CustomerPhone, booking.CustomerEmail,
		booking.Vehicle, booking.Service, booking.DateKey(), booking.Time, booking.Duration,
		booking.Status, booking.Cost, nullableID(booking.TechnicianID), nullableID(booking.ServiceID),
		nullableID(booking.BayID), booking.Notes, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get booking id: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

// GetBooking возвращает бронирование по ID
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("booking %d", id))
	}
	return booking, nil
}

// UpdateBooking перезаписывает все редактируемые поля бронирования
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now()
	query := `UPDATE bookings SET customer_name = ?, customer_phone = ?, customer_email = ?, vehicle = ?,
        service = ?, date = ?, time = ?, duration = ?, status = ?, cost = ?, technician_id = ?,
        service_id = ?, bay_id = ?, notes = ?, updated_at = ?
        WHERE id = ?`

	result, err := db.ExecContext(ctx, query,
		booking.CustomerName, booking.CustomerPhone, booking.CustomerEmail, booking.Vehicle,
		booking.Service, booking.DateKey(), booking.Time, booking.Duration, booking.Status,
		booking.Cost, nullableID(booking.TechnicianID), nullableID(booking.ServiceID),
		nullableID(booking.BayID), booking.Notes, now, booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("booking %d: %w", booking.ID, ErrNotFound)
	}

	booking.UpdatedAt = now
	return nil
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListBookings возвращает бронирования, отсортированные по дате и времени
func (db *DB) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY date, time, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		booking                      models.Booking
		date                         string
		cost                         decimal.NullDecimal
		technicianID, serviceID, bay sql.NullInt64
	)
	err := row.Scan(
		&booking.ID, &booking.Ref, &booking.CustomerName, &booking.CustomerPhone, &booking.CustomerEmail,
		&booking.Vehicle, &booking.Service, &date, &booking.Time, &booking.Duration, &booking.Status,
		&cost, &technicianID, &serviceID, &bay, &booking.Notes, &booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Date, err = parseDate(date)
	if err != nil {
		return nil, err
	}
	booking.Cost = cost
	booking.TechnicianID = idPointer(technicianID)
	booking.ServiceID = idPointer(serviceID)
	booking.BayID = idPointer(bay)
	return &booking, nil
}

func parseDate(value string) (time.Time, error) {
	// sqlite may hand back a full timestamp for legacy rows
	if len(value) > len(models.DateLayout) {
		value = strings.TrimSpace(value)[:len(models.DateLayout)]
	}
	date, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return date, nil
}
