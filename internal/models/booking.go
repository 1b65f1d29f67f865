package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID            int64               `json:"id"`
	Ref           string              `json:"ref"`
	CustomerName  string              `json:"customer_name"`
	CustomerPhone string              `json:"customer_phone"`
	CustomerEmail string              `json:"customer_email"`
	Vehicle       string              `json:"vehicle"`
	Service       string              `json:"service"`
	Date          time.Time           `json:"date"`
	Time          string              `json:"time"`     // HH:MM
	Duration      int                 `json:"duration"` // minutes
	Status        string              `json:"status"`   // pending, confirmed, cancelled, completed
	Cost          decimal.NullDecimal `json:"cost"`
	TechnicianID  *int64              `json:"technician_id,omitempty"`
	ServiceID     *int64              `json:"service_id,omitempty"`
	BayID         *int64              `json:"bay_id,omitempty"`
	Notes         string              `json:"notes"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// DateKey is the calendar day used for job matching.
func (b *Booking) DateKey() string {
	return b.Date.Format(DateLayout)
}

// Clone returns a copy that shares no pointers with b.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.TechnicianID = cloneID(b.TechnicianID)
	c.ServiceID = cloneID(b.ServiceID)
	c.BayID = cloneID(b.BayID)
	return &c
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func ValidBookingStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}
