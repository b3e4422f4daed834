package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DayOfWeek is a closed enumeration of the seven weekdays. Rules and slots
// carry it so invalid day strings cannot reach the generator.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

var allDays = [7]DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d DayOfWeek) Valid() bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

func ParseDayOfWeek(s string) (DayOfWeek, error) {
	d := DayOfWeek(strings.ToLower(s))
	if !d.Valid() {
		return "", fmt.Errorf("invalid day of week: %q", s)
	}
	return d, nil
}

func dayOfWeekOf(t time.Time) DayOfWeek {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// TimeOfDay is a minute-of-day offset (0 .. 1439). It marshals as "HH:MM".
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Add returns the time shifted forward by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar date with no time component. It marshals as
// "2006-01-02" and compares by day.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) DayOfWeek() DayOfWeek {
	return dayOfWeekOf(d.Time)
}

func (d Date) Next() Date {
	return Date{d.AddDate(0, 0, 1)}
}

func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SlotStatus tracks a slot's booking state.
type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusBooked    SlotStatus = "booked"
	StatusBlocked   SlotStatus = "blocked"
)

// ScheduleRule is a weekly recurring availability template for a doctor.
// Rules are replaced wholesale per doctor, never patched field by field.
type ScheduleRule struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	Day             DayOfWeek `json:"day"`
	Start           TimeOfDay `json:"start"`
	End             TimeOfDay `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Available       bool      `json:"available"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks the rule invariants: a known day, start before end, and a
// positive duration no longer than the window.
func (r *ScheduleRule) Validate() error {
	if !r.Day.Valid() {
		return &ValidationError{Field: "day", Message: fmt.Sprintf("invalid day of week: %q", r.Day)}
	}
	if r.Start >= r.End {
		return &ValidationError{Field: "start", Message: "start time must be before end time"}
	}
	if r.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration_minutes", Message: "slot duration must be positive"}
	}
	if TimeOfDay(r.DurationMinutes) > r.End-r.Start {
		return &ValidationError{Field: "duration_minutes", Message: "slot duration exceeds the time window"}
	}
	return nil
}

// Slot is one bookable time unit for a doctor on a date.
type Slot struct {
	ID          uuid.UUID  `json:"id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	Date        Date       `json:"date"`
	Day         DayOfWeek  `json:"day"`
	Start       TimeOfDay  `json:"start"`
	End         TimeOfDay  `json:"end"`
	Capacity    int        `json:"capacity"`
	BookedCount int        `json:"booked_count"`
	Status      SlotStatus `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Full reports whether the slot has no remaining capacity.
func (s *Slot) Full() bool {
	return s.BookedCount >= s.Capacity
}
