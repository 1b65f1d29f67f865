package service

import "errors"

var (
	ErrInvalidBooking  = errors.New("invalid booking")
	ErrInvalidInvoice  = errors.New("invalid invoice")
	ErrPreviewNotFound = errors.New("invoice preview not found or expired")
)
