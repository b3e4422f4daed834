package scheduling

import (
	"github.com/google/uuid"
)

// GenerateParams describes one slot-expansion request: a date range, a daily
// time window, the slot duration, and optionally a break window and a
// day-of-week filter.
type GenerateParams struct {
	From            Date
	To              Date
	Start           TimeOfDay
	End             TimeOfDay
	DurationMinutes int
	BreakStart      *TimeOfDay
	BreakEnd        *TimeOfDay
	Days            []DayOfWeek
}

// Validate checks the expansion input constraints.
func (p *GenerateParams) Validate() error {
	if p.To.Before(p.From) {
		return &ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}
	if p.Start >= p.End {
		return &ValidationError{Field: "start_time", Message: "start time must be before end time"}
	}
	if p.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration_minutes", Message: "slot duration must be positive"}
	}
	if TimeOfDay(p.DurationMinutes) > p.End-p.Start {
		return &ValidationError{Field: "duration_minutes", Message: "slot duration exceeds the time window"}
	}
	if (p.BreakStart == nil) != (p.BreakEnd == nil) {
		return &ValidationError{Field: "break_start", Message: "break window requires both start and end"}
	}
	if p.BreakStart != nil {
		if *p.BreakStart >= *p.BreakEnd {
			return &ValidationError{Field: "break_start", Message: "break start must be before break end"}
		}
		if *p.BreakStart < p.Start || *p.BreakEnd > p.End {
			return &ValidationError{Field: "break_start", Message: "break window must fall within the time window"}
		}
	}
	for _, d := range p.Days {
		if !d.Valid() {
			return &ValidationError{Field: "days", Message: "invalid day of week: " + string(d)}
		}
	}
	return nil
}

func (p *GenerateParams) dayEnabled(d DayOfWeek) bool {
	if len(p.Days) == 0 {
		return true
	}
	for _, enabled := range p.Days {
		if enabled == d {
			return true
		}
	}
	return false
}

// ExpandSlots expands the parameters into candidate slots, one per
// duration-sized increment from the window start, for each enabled date in
// the range. Any increment that intersects the break window at all is
// dropped, even on a partial overlap. The result is ordered by date then
// start time and is deterministic for identical inputs.
//
// Candidates carry capacity 1 and status available; merging against existing
// persisted slots is the caller's concern.
func ExpandSlots(doctorID uuid.UUID, p GenerateParams) []Slot {
	var out []Slot
	for date := p.From; !date.After(p.To); date = date.Next() {
		day := date.DayOfWeek()
		if !p.dayEnabled(day) {
			continue
		}
		for start := p.Start; start.Add(p.DurationMinutes) <= p.End; start = start.Add(p.DurationMinutes) {
			end := start.Add(p.DurationMinutes)
			if p.BreakStart != nil && start < *p.BreakEnd && end > *p.BreakStart {
				continue
			}
			out = append(out, Slot{
				DoctorID:    doctorID,
				Date:        date,
				Day:         day,
				Start:       start,
				End:         end,
				Capacity:    1,
				BookedCount: 0,
				Status:      StatusAvailable,
			})
		}
	}
	return out
}
