package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/scheduling"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
}

// SlotBooker is the slice of the scheduling service the appointment domain
// needs: claiming and releasing slot capacity. Both calls must run inside
// the booking transaction so the appointment row and the slot counter move
// together.
type SlotBooker interface {
	TryBook(ctx context.Context, slotID uuid.UUID) (*scheduling.Slot, error)
	Release(ctx context.Context, slotID uuid.UUID) (*scheduling.Slot, error)
}

// PatientResolver reports whether a patient ID refers to a known, active
// patient. The identity domain provides the implementation.
type PatientResolver interface {
	ResolvePatient(ctx context.Context, id uuid.UUID) (bool, error)
}
