package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the linear appointment lifecycle: booked, then completed,
// cancelled, or no-show.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// Appointment ties a patient to one slot. Capacity accounting lives on the
// slot; the appointment only records who holds the booking.
type Appointment struct {
	ID          uuid.UUID  `json:"id"`
	SlotID      uuid.UUID  `json:"slot_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	Status      Status     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
