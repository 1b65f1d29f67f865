package database

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/models"
)

const jobColumns = `id, booking_ref, customer_name, vehicle, service, status, technician_name, date,
        time_estimate, created_at, updated_at`

func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	now := time.Now()

	query := `INSERT INTO jobs (booking_ref, customer_name, vehicle, service, status, technician_name,
        date, time_estimate, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := db.ExecContext(ctx, query,
		job.BookingRef, job.CustomerName, job.Vehicle, job.Service, job.Status, job.TechnicianName,
		job.Date.Format(models.DateLayout), job.TimeEstimate, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get job id: %w", err)
	}
	job.ID = id
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

// GetJobByBookingRef возвращает задачу, привязанную к бронированию
func (db *DB) GetJobByBookingRef(ctx context.Context, ref string) (*models.Job, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE booking_ref = ? ORDER BY id LIMIT 1`, ref)
	job, err := scanJob(row)
	if err != nil {
		return nil, notFound(err, "job for booking "+ref)
	}
	return job, nil
}

// FindJobs ищет задачи по клиенту, автомобилю и дате. Порядок по id стабилен,
// поэтому первый элемент всегда один и тот же.
func (db *DB) FindJobs(ctx context.Context, customerName, vehicle string, date time.Time) ([]*models.Job, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE customer_name = ? AND vehicle = ? AND date = ? ORDER BY id ASC`,
		customerName, vehicle, date.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to find jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (db *DB) UpdateJob(ctx context.Context, job *models.Job) error {
	now := time.Now()
	query := `UPDATE jobs SET booking_ref = ?, customer_name = ?, vehicle = ?, service = ?, status = ?,
        technician_name = ?, date = ?, time_estimate = ?, updated_at = ?
        WHERE id = ?`

	result, err := db.ExecContext(ctx, query,
		job.BookingRef, job.CustomerName, job.Vehicle, job.Service, job.Status, job.TechnicianName,
		job.Date.Format(models.DateLayout), job.TimeEstimate, now, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("job %d: %w", job.ID, ErrNotFound)
	}
	job.UpdatedAt = now
	return nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job  models.Job
		date string
	)
	err := row.Scan(&job.ID, &job.BookingRef, &job.CustomerName, &job.Vehicle, &job.Service,
		&job.Status, &job.TechnicianName, &date, &job.TimeEstimate, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Date, err = parseDate(date)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
