package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type RuleRepository interface {
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleRule, error)
	DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)
	CreateBatch(ctx context.Context, rules []*ScheduleRule) error
}

type SlotRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	GetByStart(ctx context.Context, doctorID uuid.UUID, date Date, start TimeOfDay) (*Slot, error)
	Create(ctx context.Context, s *Slot) error
	Update(ctx context.Context, s *Slot) error
	List(ctx context.Context, doctorID uuid.UUID, from, to *Date) ([]*Slot, error)

	// DeleteEmpty removes the slot only when it has no bookings. It returns
	// ErrSlotHasBookings when the slot is booked and ErrSlotNotFound when it
	// does not exist.
	DeleteEmpty(ctx context.Context, id uuid.UUID) error

	// TryBook atomically claims one unit of capacity. The capacity check and
	// increment happen as a single conditional write so two concurrent calls
	// can never both claim the last unit. Returns ErrSlotUnavailable when the
	// slot is blocked or full.
	TryBook(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Release returns one unit of capacity, flooring the booked count at
	// zero. A blocked slot stays blocked.
	Release(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Block marks an empty slot blocked. Returns ErrSlotHasBookings when the
	// slot has bookings.
	Block(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Unblock clears a block, recomputing status from the booked count.
	Unblock(ctx context.Context, id uuid.UUID) (*Slot, error)
}

// DoctorResolver reports whether a doctor ID refers to a known, active
// doctor. The identity domain provides the implementation.
type DoctorResolver interface {
	ResolveDoctor(ctx context.Context, id uuid.UUID) (bool, error)
}
