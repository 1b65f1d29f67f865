package models

import "time"

// Job mirrors a booking for technician workflows.
type Job struct {
	ID             int64     `json:"id"`
	BookingRef     string    `json:"booking_ref"`
	CustomerName   string    `json:"customer_name"`
	Vehicle        string    `json:"vehicle"`
	Service        string    `json:"service"`
	Status         string    `json:"status"`
	TechnicianName string    `json:"technician_name"`
	Date           time.Time `json:"date"`
	TimeEstimate   string    `json:"time_estimate"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// JobStatusFor maps a booking status onto the job vocabulary.
func JobStatusFor(bookingStatus string) string {
	switch bookingStatus {
	case StatusConfirmed, StatusPending:
		return JobStatusPending
	case StatusCancelled:
		return JobStatusCancelled
	case StatusCompleted:
		return JobStatusCompleted
	default:
		return bookingStatus
	}
}
