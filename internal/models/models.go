package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidID = errors.New("invalid id")

// ParseID accepts the id representations clients send: integers, integral floats,
// numeric strings and json.Number.
func ParseID(v interface{}) (int64, error) {
	switch id := v.(type) {
	case int64:
		return checkID(id)
	case int:
		return checkID(int64(id))
	case int32:
		return checkID(int64(id))
	case float64:
		if id != math.Trunc(id) || math.IsInf(id, 0) || math.IsNaN(id) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidID, id)
		}
		return checkID(int64(id))
	case json.Number:
		return ParseID(string(id))
	case string:
		s := strings.TrimSpace(id)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
			}
			return ParseID(f)
		}
		return checkID(n)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidID, v)
	}
}

func checkID(id int64) (int64, error) {
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return id, nil
}

// FlexibleID decodes from either a JSON number or a JSON string.
type FlexibleID int64

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, string(data))
	}
	id, err := ParseID(raw)
	if err != nil {
		return err
	}
	*f = FlexibleID(id)
	return nil
}

func (f FlexibleID) Int64() int64 {
	return int64(f)
}

// Ptr returns the id as *int64, nil for a nil receiver.
func (f *FlexibleID) Ptr() *int64 {
	if f == nil {
		return nil
	}
	v := int64(*f)
	return &v
}

const (
	EditPending    = "pending"
	EditCommitted  = "committed"
	EditRolledBack = "rolled_back"
)

// EditState tracks one optimistic booking edit until the store confirms or rejects it.
type EditState struct {
	BookingID int64     `json:"booking_id"`
	Status    string    `json:"status"`
	Previous  *Booking  `json:"previous,omitempty"`
	Proposed  *Booking  `json:"proposed,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
