package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"workshop/internal/models"
)

func (db *DB) CreateTechnician(ctx context.Context, tech *models.Technician) error {
	result, err := db.ExecContext(ctx, `INSERT INTO technicians (name, active) VALUES (?, ?)`, tech.Name, tech.Active)
	if err != nil {
		return fmt.Errorf("failed to create technician: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	tech.ID = id
	return nil
}

// FindTechnicianName возвращает nil, если техник не найден
func (db *DB) FindTechnicianName(ctx context.Context, id int64) (*string, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM technicians WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}
	return &name, nil
}

func (db *DB) ListTechnicians(ctx context.Context) ([]models.Technician, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, active FROM technicians ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	defer rows.Close()

	var techs []models.Technician
	for rows.Next() {
		var t models.Technician
		if err := rows.Scan(&t.ID, &t.Name, &t.Active); err != nil {
			return nil, fmt.Errorf("failed to scan technician: %w", err)
		}
		techs = append(techs, t)
	}
	return techs, rows.Err()
}
