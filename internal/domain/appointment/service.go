package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/db"
)

type Service struct {
	repo     Repository
	slots    SlotBooker
	patients PatientResolver
	tx       db.Runner
}

func NewService(repo Repository, slots SlotBooker, patients PatientResolver, tx db.Runner) *Service {
	return &Service{repo: repo, slots: slots, patients: patients, tx: tx}
}

// Book claims the slot and records the appointment in one transaction. If
// the slot is blocked or full the whole operation fails and nothing is
// written.
func (s *Service) Book(ctx context.Context, slotID, patientID uuid.UUID, reason string) (*Appointment, error) {
	ok, err := s.patients.ResolvePatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	appt := &Appointment{
		SlotID:    slotID,
		PatientID: patientID,
		Status:    StatusBooked,
		Reason:    reason,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		slot, err := s.slots.TryBook(ctx, slotID)
		if err != nil {
			return err
		}
		appt.DoctorID = slot.DoctorID
		return s.repo.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Cancel releases the slot and marks the appointment cancelled in one
// transaction. Cancelling twice is rejected.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		if appt.Status != StatusBooked {
			return ErrNotActive
		}

		if _, err := s.slots.Release(ctx, appt.SlotID); err != nil {
			return err
		}

		now := time.Now()
		appt.Status = StatusCancelled
		appt.CancelledAt = &now
		return s.repo.Update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Complete marks a booked appointment as completed. The slot keeps its
// booked count; history stays consistent with what actually happened.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

// MarkNoShow marks a booked appointment as a no-show.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusBooked {
		return nil, ErrNotActive
	}
	appt.Status = to
	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}
