package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotUnavailable is returned when a booking attempt hits a slot that
	// is blocked or already at capacity.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrSlotHasBookings is returned when a destructive operation targets a
	// slot with active bookings. The bookings must be cancelled or
	// reassigned first; nothing is auto-cancelled.
	ErrSlotHasBookings = errors.New("slot has active bookings")

	ErrSlotNotFound   = errors.New("slot not found")
	ErrDoctorNotFound = errors.New("doctor not found")
)

// ValidationError reports a malformed input with field-level detail.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
