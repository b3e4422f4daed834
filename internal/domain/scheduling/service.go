package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/db"
)

// GenerateResult reports the outcome of a slot generation run.
type GenerateResult struct {
	Created   int `json:"created"`
	Preserved int `json:"preserved"`
	Skipped   int `json:"skipped"`
}

// ReplaceResult reports the outcome of a full schedule replacement.
// FlaggedForReview lists booked slots that the new rules no longer cover;
// they are left in place and need manual resolution.
type ReplaceResult struct {
	RulesReplaced    int     `json:"rules_replaced"`
	SlotsCreated     int     `json:"slots_created"`
	SlotsRemoved     int     `json:"slots_removed"`
	FlaggedForReview []*Slot `json:"flagged_for_review"`
}

type Service struct {
	rules   RuleRepository
	slots   SlotRepository
	doctors DoctorResolver
	tx      db.Runner

	// horizonWeeks bounds how far ahead BlockTimeSlot materializes blocked
	// slots.
	horizonWeeks int
	now          func() time.Time
}

func NewService(rules RuleRepository, slots SlotRepository, doctors DoctorResolver, tx db.Runner, horizonWeeks int) *Service {
	return &Service{
		rules:        rules,
		slots:        slots,
		doctors:      doctors,
		tx:           tx,
		horizonWeeks: horizonWeeks,
		now:          time.Now,
	}
}

func (s *Service) resolveDoctor(ctx context.Context, doctorID uuid.UUID) error {
	ok, err := s.doctors.ResolveDoctor(ctx, doctorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDoctorNotFound
	}
	return nil
}

// GenerateSlots expands the parameters into slots and upserts them for the
// doctor. Existing slots with bookings are preserved unchanged, blocked
// slots are skipped, and everything else is (re)created as available.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, params GenerateParams) (*GenerateResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolveDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	candidates := ExpandSlots(doctorID, params)

	result := &GenerateResult{}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for i := range candidates {
			if err := s.upsertCandidate(ctx, &candidates[i], result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// upsertCandidate merges one candidate slot against the store. Slots with
// bookings keep their capacity and status untouched.
func (s *Service) upsertCandidate(ctx context.Context, candidate *Slot, result *GenerateResult) error {
	existing, err := s.slots.GetByStart(ctx, candidate.DoctorID, candidate.Date, candidate.Start)
	if errors.Is(err, ErrSlotNotFound) {
		if err := s.slots.Create(ctx, candidate); err != nil {
			return err
		}
		result.Created++
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case existing.BookedCount > 0:
		result.Preserved++
	case existing.Status == StatusBlocked:
		result.Skipped++
	default:
		// Empty available slot: refresh it to the candidate shape.
		existing.End = candidate.End
		existing.Day = candidate.Day
		existing.Capacity = candidate.Capacity
		existing.Status = StatusAvailable
		if err := s.slots.Update(ctx, existing); err != nil {
			return err
		}
		result.Created++
	}
	return nil
}

// ReplaceSchedule swaps a doctor's entire rule set and regenerates slots in
// the target range as one all-or-nothing transaction. Slots no longer
// covered by any rule are removed when empty; booked ones are kept and
// flagged for review.
func (s *Service) ReplaceSchedule(ctx context.Context, doctorID uuid.UUID, rules []*ScheduleRule, weekStart, weekEnd Date) (*ReplaceResult, error) {
	if weekEnd.Before(weekStart) {
		return nil, &ValidationError{Field: "week_end", Message: "week end must not be before week start"}
	}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}
	if err := s.resolveDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	result := &ReplaceResult{FlaggedForReview: []*Slot{}}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.rules.DeleteByDoctor(ctx, doctorID); err != nil {
			return err
		}
		for _, rule := range rules {
			rule.ID = uuid.Nil
			rule.DoctorID = doctorID
		}
		if err := s.rules.CreateBatch(ctx, rules); err != nil {
			return err
		}
		result.RulesReplaced = len(rules)

		// Regenerate slots per rule and remember which date/start pairs the
		// new schedule covers.
		covered := make(map[string]bool)
		gen := &GenerateResult{}
		for _, rule := range rules {
			if !rule.Available {
				continue
			}
			params := GenerateParams{
				From:            weekStart,
				To:              weekEnd,
				Start:           rule.Start,
				End:             rule.End,
				DurationMinutes: rule.DurationMinutes,
				Days:            []DayOfWeek{rule.Day},
			}
			for _, candidate := range ExpandSlots(doctorID, params) {
				key := slotKey(candidate.Date, candidate.Start)
				if covered[key] {
					// Overlapping rules can emit the same date/start twice.
					continue
				}
				covered[key] = true
				c := candidate
				if err := s.upsertCandidate(ctx, &c, gen); err != nil {
					return err
				}
			}
		}
		result.SlotsCreated = gen.Created

		// Sweep slots in range that the new rules no longer cover.
		existing, err := s.slots.List(ctx, doctorID, &weekStart, &weekEnd)
		if err != nil {
			return err
		}
		for _, slot := range existing {
			if covered[slotKey(slot.Date, slot.Start)] {
				continue
			}
			if slot.BookedCount > 0 {
				result.FlaggedForReview = append(result.FlaggedForReview, slot)
				continue
			}
			if err := s.slots.DeleteEmpty(ctx, slot.ID); err != nil {
				return err
			}
			result.SlotsRemoved++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func slotKey(date Date, start TimeOfDay) string {
	return date.String() + "#" + start.String()
}

// GetSchedule returns the doctor's current rule set.
func (s *Service) GetSchedule(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleRule, error) {
	if err := s.resolveDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	rules, err := s.rules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []*ScheduleRule{}
	}
	return rules, nil
}

// ListSlots returns the doctor's slots, optionally bounded by dates.
func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to *Date) ([]*Slot, error) {
	if err := s.resolveDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	slots, err := s.slots.List(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []*Slot{}
	}
	return slots, nil
}

// DeleteSlot removes an empty slot. Slots with bookings are refused.
func (s *Service) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	return s.slots.DeleteEmpty(ctx, id)
}

// TryBook claims one unit of capacity on the slot. The appointment domain
// calls this inside its own booking transaction.
func (s *Service) TryBook(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.TryBook(ctx, id)
}

// Release returns one unit of capacity on the slot.
func (s *Service) Release(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.Release(ctx, id)
}

// BlockSlot administratively disables a single slot.
func (s *Service) BlockSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.Block(ctx, id)
}

// UnblockSlot clears an administrative block.
func (s *Service) UnblockSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.Unblock(ctx, id)
}

// BlockTimeSlot creates blocked slots covering the given weekly window for
// every matching date within the planning horizon, starting today. Existing
// empty slots overlapping the window are blocked in place; a booked slot
// anywhere inside the window aborts the whole operation with
// ErrSlotHasBookings.
func (s *Service) BlockTimeSlot(ctx context.Context, doctorID uuid.UUID, day DayOfWeek, start, end TimeOfDay, notes string) ([]*Slot, error) {
	if !day.Valid() {
		return nil, &ValidationError{Field: "day", Message: "invalid day of week: " + string(day)}
	}
	if start >= end {
		return nil, &ValidationError{Field: "start", Message: "start time must be before end time"}
	}
	if err := s.resolveDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	from := DateOf(s.now())
	to := Date{from.AddDate(0, 0, s.horizonWeeks*7-1)}

	var blocked []*Slot
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for date := from; !date.After(to); date = date.Next() {
			if date.DayOfWeek() != day {
				continue
			}

			existing, err := s.slots.List(ctx, doctorID, &date, &date)
			if err != nil {
				return err
			}

			// Every slot intersecting the window is affected, not just
			// one starting exactly at the window start.
			haveStart := false
			for _, overlap := range existing {
				if overlap.Start >= end || overlap.End <= start {
					continue
				}
				if overlap.BookedCount > 0 {
					return ErrSlotHasBookings
				}
				if overlap.Start == start {
					haveStart = true
				}
				slot, err := s.slots.Block(ctx, overlap.ID)
				if err != nil {
					return err
				}
				blocked = append(blocked, slot)
			}
			if haveStart {
				continue
			}

			slot := &Slot{
				DoctorID: doctorID,
				Date:     date,
				Day:      day,
				Start:    start,
				End:      end,
				Capacity: 1,
				Status:   StatusBlocked,
				Notes:    notes,
			}
			if err := s.slots.Create(ctx, slot); err != nil {
				return err
			}
			blocked = append(blocked, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if blocked == nil {
		blocked = []*Slot{}
	}
	return blocked, nil
}
