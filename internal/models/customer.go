package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
	Status     string          `json:"status"`
	LastVisit  *time.Time      `json:"last_visit,omitempty"`
	TotalSpend decimal.Decimal `json:"total_spend"`
	VisitCount int             `json:"visit_count"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CustomerPatch carries the fields a reconciliation may change. Nil fields are left alone.
type CustomerPatch struct {
	LastVisit *time.Time
	Email     *string
}

func (p CustomerPatch) Empty() bool {
	return p.LastVisit == nil && p.Email == nil
}

// VehicleInfo associates a vehicle description with a customer.
type VehicleInfo struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Vehicle    string    `json:"vehicle"`
	CreatedAt  time.Time `json:"created_at"`
}

type CustomerNote struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
}

// CustomerVisit is one recorded spend; customer totals are recomputed from these rows.
type CustomerVisit struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	BookingID  int64           `json:"booking_id"`
	Amount     decimal.Decimal `json:"amount"`
	VisitedAt  time.Time       `json:"visited_at"`
}
