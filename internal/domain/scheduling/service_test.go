package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- mocks --

type mockRuleRepo struct {
	mu    sync.Mutex
	rules map[uuid.UUID]*ScheduleRule
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{rules: make(map[uuid.UUID]*ScheduleRule)}
}

func (m *mockRuleRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*ScheduleRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ScheduleRule
	for _, r := range m.rules {
		if r.DoctorID == doctorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) DeleteByDoctor(_ context.Context, doctorID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.rules {
		if r.DoctorID == doctorID {
			delete(m.rules, id)
			n++
		}
	}
	return n, nil
}

func (m *mockRuleRepo) CreateBatch(_ context.Context, rules []*ScheduleRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rules {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		m.rules[r.ID] = r
	}
	return nil
}

type mockSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*Slot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[uuid.UUID]*Slot)}
}

func (m *mockSlotRepo) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSlotRepo) GetByStart(_ context.Context, doctorID uuid.UUID, date Date, start TimeOfDay) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.Date.Equal(date) && s.Start == start {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrSlotNotFound
}

func (m *mockSlotRepo) Create(_ context.Context, s *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *mockSlotRepo) Update(_ context.Context, s *Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[s.ID]; !ok {
		return ErrSlotNotFound
	}
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *mockSlotRepo) List(_ context.Context, doctorID uuid.UUID, from, to *Date) ([]*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Slot
	for _, s := range m.slots {
		if s.DoctorID != doctorID {
			continue
		}
		if from != nil && s.Date.Before(*from) {
			continue
		}
		if to != nil && s.Date.After(*to) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockSlotRepo) DeleteEmpty(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	if s.BookedCount > 0 {
		return ErrSlotHasBookings
	}
	delete(m.slots, id)
	return nil
}

func (m *mockSlotRepo) TryBook(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.Status == StatusBlocked || s.BookedCount >= s.Capacity {
		return nil, ErrSlotUnavailable
	}
	s.BookedCount++
	if s.BookedCount >= s.Capacity {
		s.Status = StatusBooked
	}
	cp := *s
	return &cp, nil
}

func (m *mockSlotRepo) Release(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.BookedCount > 0 {
		s.BookedCount--
	}
	if s.Status != StatusBlocked {
		if s.BookedCount >= s.Capacity {
			s.Status = StatusBooked
		} else {
			s.Status = StatusAvailable
		}
	}
	cp := *s
	return &cp, nil
}

func (m *mockSlotRepo) Block(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.BookedCount > 0 {
		return nil, ErrSlotHasBookings
	}
	s.Status = StatusBlocked
	cp := *s
	return &cp, nil
}

func (m *mockSlotRepo) Unblock(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.BookedCount >= s.Capacity {
		s.Status = StatusBooked
	} else {
		s.Status = StatusAvailable
	}
	cp := *s
	return &cp, nil
}

type mockResolver struct {
	known map[uuid.UUID]bool
}

func (m *mockResolver) ResolveDoctor(_ context.Context, id uuid.UUID) (bool, error) {
	return m.known[id], nil
}

// passRunner runs the function directly; the mocks have no transactions.
type passRunner struct{}

func (passRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockRuleRepo, *mockSlotRepo, uuid.UUID) {
	rules := newMockRuleRepo()
	slots := newMockSlotRepo()
	doctorID := uuid.New()
	resolver := &mockResolver{known: map[uuid.UUID]bool{doctorID: true}}
	svc := NewService(rules, slots, resolver, passRunner{}, 4)
	return svc, rules, slots, doctorID
}

// -- GenerateSlots --

func TestGenerateSlots_FullWeek(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	result, err := svc.GenerateSlots(context.Background(), doctorID, weekParams())
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if result.Created != 30 || result.Preserved != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v, want 30 created", result)
	}
	if len(slots.slots) != 30 {
		t.Errorf("store holds %d slots, want 30", len(slots.slots))
	}
}

func TestGenerateSlots_Idempotent(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	if _, err := svc.GenerateSlots(context.Background(), doctorID, weekParams()); err != nil {
		t.Fatalf("first GenerateSlots: %v", err)
	}
	if _, err := svc.GenerateSlots(context.Background(), doctorID, weekParams()); err != nil {
		t.Fatalf("second GenerateSlots: %v", err)
	}

	if len(slots.slots) != 30 {
		t.Errorf("store holds %d slots after second run, want 30 (no duplicates)", len(slots.slots))
	}
}

func TestGenerateSlots_PreservesBooked(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	if _, err := svc.GenerateSlots(context.Background(), doctorID, weekParams()); err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}

	// Book one slot, then regenerate.
	var bookedID uuid.UUID
	for id := range slots.slots {
		bookedID = id
		break
	}
	if _, err := svc.TryBook(context.Background(), bookedID); err != nil {
		t.Fatalf("TryBook: %v", err)
	}

	result, err := svc.GenerateSlots(context.Background(), doctorID, weekParams())
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if result.Preserved != 1 {
		t.Errorf("preserved = %d, want 1", result.Preserved)
	}
	if result.Created != 29 {
		t.Errorf("created = %d, want 29", result.Created)
	}

	after, err := svc.TryBook(context.Background(), bookedID)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("booked slot should still be full after regeneration, got slot=%v err=%v", after, err)
	}
}

func TestGenerateSlots_SkipsBlocked(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	if _, err := svc.GenerateSlots(context.Background(), doctorID, weekParams()); err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}

	var blockedID uuid.UUID
	for id := range slots.slots {
		blockedID = id
		break
	}
	if _, err := svc.BlockSlot(context.Background(), blockedID); err != nil {
		t.Fatalf("BlockSlot: %v", err)
	}

	result, err := svc.GenerateSlots(context.Background(), doctorID, weekParams())
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", result.Skipped)
	}

	got, err := svc.slots.GetByID(context.Background(), blockedID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusBlocked {
		t.Errorf("blocked slot status = %q after regeneration, want blocked", got.Status)
	}
}

func TestGenerateSlots_UnknownDoctor(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.GenerateSlots(context.Background(), uuid.New(), weekParams())
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestGenerateSlots_InvalidParams(t *testing.T) {
	svc, _, _, doctorID := newTestService()

	p := weekParams()
	p.DurationMinutes = 0
	_, err := svc.GenerateSlots(context.Background(), doctorID, p)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// -- ReplaceSchedule --

func weekdayRules(days ...DayOfWeek) []*ScheduleRule {
	var rules []*ScheduleRule
	for _, d := range days {
		rules = append(rules, &ScheduleRule{
			Day:             d,
			Start:           tod(9, 0),
			End:             tod(12, 0),
			DurationMinutes: 30,
			Available:       true,
		})
	}
	return rules
}

func TestReplaceSchedule_RegeneratesWeek(t *testing.T) {
	svc, rules, slots, doctorID := newTestService()

	result, err := svc.ReplaceSchedule(context.Background(), doctorID,
		weekdayRules(Monday, Tuesday, Wednesday, Thursday, Friday),
		monday, NewDate(2026, time.September, 13))
	if err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	if result.RulesReplaced != 5 {
		t.Errorf("rules replaced = %d, want 5", result.RulesReplaced)
	}
	if result.SlotsCreated != 30 {
		t.Errorf("slots created = %d, want 30", result.SlotsCreated)
	}
	if len(rules.rules) != 5 {
		t.Errorf("rule store holds %d rules, want 5", len(rules.rules))
	}
	if len(slots.slots) != 30 {
		t.Errorf("slot store holds %d slots, want 30", len(slots.slots))
	}
}

func TestReplaceSchedule_OverlappingRulesCountSlotsOnce(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	// Two Monday rules whose windows overlap between 10:00 and 12:00.
	overlapping := []*ScheduleRule{
		{Day: Monday, Start: tod(9, 0), End: tod(12, 0), DurationMinutes: 30, Available: true},
		{Day: Monday, Start: tod(10, 0), End: tod(12, 0), DurationMinutes: 30, Available: true},
	}

	result, err := svc.ReplaceSchedule(context.Background(), doctorID, overlapping,
		monday, NewDate(2026, time.September, 13))
	if err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	// 09:00 through 11:30 is six distinct starts; the shared ones must not
	// be double counted.
	if result.SlotsCreated != 6 {
		t.Errorf("slots created = %d, want 6", result.SlotsCreated)
	}
	if len(slots.slots) != 6 {
		t.Errorf("slot store holds %d slots, want 6", len(slots.slots))
	}
}

func TestReplaceSchedule_ReplacesOldRules(t *testing.T) {
	svc, rules, _, doctorID := newTestService()

	week := NewDate(2026, time.September, 13)
	if _, err := svc.ReplaceSchedule(context.Background(), doctorID, weekdayRules(Monday, Tuesday), monday, week); err != nil {
		t.Fatalf("first ReplaceSchedule: %v", err)
	}
	if _, err := svc.ReplaceSchedule(context.Background(), doctorID, weekdayRules(Wednesday), monday, week); err != nil {
		t.Fatalf("second ReplaceSchedule: %v", err)
	}

	if len(rules.rules) != 1 {
		t.Fatalf("rule store holds %d rules, want 1", len(rules.rules))
	}
	for _, r := range rules.rules {
		if r.Day != Wednesday {
			t.Errorf("surviving rule day = %q, want wednesday", r.Day)
		}
	}
}

func TestReplaceSchedule_FlagsBookedUncoveredSlots(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	week := NewDate(2026, time.September, 13)
	if _, err := svc.ReplaceSchedule(context.Background(), doctorID,
		weekdayRules(Monday, Tuesday, Wednesday, Thursday, Friday), monday, week); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	// Book one Friday slot.
	friday := NewDate(2026, time.September, 11)
	booked, err := svc.slots.GetByStart(context.Background(), doctorID, friday, tod(9, 0))
	if err != nil {
		t.Fatalf("GetByStart: %v", err)
	}
	if _, err := svc.TryBook(context.Background(), booked.ID); err != nil {
		t.Fatalf("TryBook: %v", err)
	}

	// New schedule drops Friday entirely.
	result, err := svc.ReplaceSchedule(context.Background(), doctorID,
		weekdayRules(Monday, Tuesday, Wednesday, Thursday), monday, week)
	if err != nil {
		t.Fatalf("ReplaceSchedule without friday: %v", err)
	}

	// Friday's five empty slots are gone, the booked one survives flagged.
	if result.SlotsRemoved != 5 {
		t.Errorf("slots removed = %d, want 5", result.SlotsRemoved)
	}
	if len(result.FlaggedForReview) != 1 {
		t.Fatalf("flagged = %d, want 1", len(result.FlaggedForReview))
	}
	if result.FlaggedForReview[0].ID != booked.ID {
		t.Error("wrong slot flagged for review")
	}

	survivor, err := svc.slots.GetByID(context.Background(), booked.ID)
	if err != nil {
		t.Fatalf("booked slot was removed: %v", err)
	}
	if survivor.BookedCount != 1 {
		t.Errorf("booked count = %d, want 1", survivor.BookedCount)
	}
	if len(slots.slots) != 25 {
		t.Errorf("slot store holds %d slots, want 25 (24 regenerated + 1 flagged)", len(slots.slots))
	}
}

func TestReplaceSchedule_RejectsInvalidRule(t *testing.T) {
	svc, rules, _, doctorID := newTestService()

	week := NewDate(2026, time.September, 13)
	if _, err := svc.ReplaceSchedule(context.Background(), doctorID, weekdayRules(Monday), monday, week); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	bad := weekdayRules(Tuesday, Wednesday)
	bad[1].DurationMinutes = 0

	_, err := svc.ReplaceSchedule(context.Background(), doctorID, bad, monday, week)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	// The whole batch is rejected before any mutation: old rules survive.
	if len(rules.rules) != 1 {
		t.Errorf("rule store holds %d rules, want 1 (unchanged)", len(rules.rules))
	}
	for _, r := range rules.rules {
		if r.Day != Monday {
			t.Errorf("surviving rule day = %q, want monday", r.Day)
		}
	}
}

func TestReplaceSchedule_SkipsUnavailableRules(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	rules := weekdayRules(Monday, Tuesday)
	rules[1].Available = false

	result, err := svc.ReplaceSchedule(context.Background(), doctorID, rules, monday, NewDate(2026, time.September, 13))
	if err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}
	if result.SlotsCreated != 6 {
		t.Errorf("slots created = %d, want 6 (monday only)", result.SlotsCreated)
	}
	for _, s := range slots.slots {
		if s.Day == Tuesday {
			t.Error("unavailable rule generated a slot")
		}
	}
}

// -- Booking guard --

func TestTryBook_Succeeds(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 1, Status: StatusAvailable}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	booked, err := svc.TryBook(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("TryBook: %v", err)
	}
	if booked.BookedCount != 1 {
		t.Errorf("booked count = %d, want 1", booked.BookedCount)
	}
	if booked.Status != StatusBooked {
		t.Errorf("status = %q, want booked", booked.Status)
	}
}

func TestTryBook_FullSlot(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 1, BookedCount: 1, Status: StatusBooked}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.TryBook(context.Background(), slot.ID); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestTryBook_BlockedSlot(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 1, Status: StatusBlocked}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.TryBook(context.Background(), slot.ID); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable for blocked slot, got %v", err)
	}
}

func TestTryBook_ConcurrentSingleWinner(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 1, Status: StatusAvailable}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TryBook(context.Background(), slot.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Errorf("wins=%d conflicts=%d, want exactly one of each", wins, conflicts)
	}

	final, err := svc.slots.GetByID(context.Background(), slot.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.BookedCount != 1 {
		t.Errorf("booked count = %d, want 1", final.BookedCount)
	}
}

func TestRelease_RestoresAvailability(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 1, BookedCount: 1, Status: StatusBooked}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	released, err := svc.Release(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.BookedCount != 0 {
		t.Errorf("booked count = %d, want 0", released.BookedCount)
	}
	if released.Status != StatusAvailable {
		t.Errorf("status = %q, want available", released.Status)
	}
}

func TestRelease_FloorsAtZero(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 1, Status: StatusAvailable}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	released, err := svc.Release(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.BookedCount != 0 {
		t.Errorf("booked count = %d, want 0", released.BookedCount)
	}
}

func TestRelease_BlockedStaysBlocked(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 2, BookedCount: 1, Status: StatusBlocked}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	released, err := svc.Release(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.Status != StatusBlocked {
		t.Errorf("status = %q, want blocked to persist", released.Status)
	}
}

func TestBlockSlot_WithBookingsFails(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 2, BookedCount: 1, Status: StatusAvailable}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.BlockSlot(context.Background(), slot.ID); !errors.Is(err, ErrSlotHasBookings) {
		t.Errorf("expected ErrSlotHasBookings, got %v", err)
	}
}

func TestUnblockSlot(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	slot := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 1, Status: StatusBlocked}
	if err := slots.Create(context.Background(), slot); err != nil {
		t.Fatal(err)
	}

	unblocked, err := svc.UnblockSlot(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("UnblockSlot: %v", err)
	}
	if unblocked.Status != StatusAvailable {
		t.Errorf("status = %q, want available", unblocked.Status)
	}
}

func TestDeleteSlot(t *testing.T) {
	svc, _, slots, doctorID := newTestService()

	empty := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 0), End: tod(9, 30), Capacity: 1, Status: StatusAvailable}
	booked := &Slot{DoctorID: doctorID, Date: monday, Day: Monday, Start: tod(9, 30), End: tod(10, 0), Capacity: 1, BookedCount: 1, Status: StatusBooked}
	for _, s := range []*Slot{empty, booked} {
		if err := slots.Create(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.DeleteSlot(context.Background(), empty.ID); err != nil {
		t.Errorf("delete of empty slot failed: %v", err)
	}
	if err := svc.DeleteSlot(context.Background(), booked.ID); !errors.Is(err, ErrSlotHasBookings) {
		t.Errorf("expected ErrSlotHasBookings, got %v", err)
	}
	if err := svc.DeleteSlot(context.Background(), uuid.New()); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
}

// -- BlockTimeSlot --

func TestBlockTimeSlot_CreatesBlockedSlotsOverHorizon(t *testing.T) {
	svc, _, slots, doctorID := newTestService()
	svc.now = func() time.Time { return monday.Time }

	created, err := svc.BlockTimeSlot(context.Background(), doctorID, Wednesday, tod(13, 0), tod(14, 0), "weekly board meeting")
	if err != nil {
		t.Fatalf("BlockTimeSlot: %v", err)
	}

	// Four weeks of horizon starting Monday contain four Wednesdays.
	if len(created) != 4 {
		t.Fatalf("created %d blocked slots, want 4", len(created))
	}
	for _, s := range created {
		if s.Status != StatusBlocked {
			t.Errorf("slot status = %q, want blocked", s.Status)
		}
		if s.Day != Wednesday {
			t.Errorf("slot day = %q, want wednesday", s.Day)
		}
		if s.Notes != "weekly board meeting" {
			t.Errorf("notes = %q", s.Notes)
		}
	}
	if len(slots.slots) != 4 {
		t.Errorf("store holds %d slots, want 4", len(slots.slots))
	}
}

func TestBlockTimeSlot_BlocksExistingEmptySlot(t *testing.T) {
	svc, _, slots, doctorID := newTestService()
	svc.now = func() time.Time { return monday.Time }

	wednesday := NewDate(2026, time.September, 9)
	existing := &Slot{DoctorID: doctorID, Date: wednesday, Day: Wednesday, Start: tod(13, 0), End: tod(13, 30), Capacity: 1, Status: StatusAvailable}
	if err := slots.Create(context.Background(), existing); err != nil {
		t.Fatal(err)
	}

	created, err := svc.BlockTimeSlot(context.Background(), doctorID, Wednesday, tod(13, 0), tod(14, 0), "")
	if err != nil {
		t.Fatalf("BlockTimeSlot: %v", err)
	}
	if len(created) != 4 {
		t.Fatalf("created %d blocked slots, want 4", len(created))
	}

	got, err := svc.slots.GetByID(context.Background(), existing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusBlocked {
		t.Errorf("existing slot status = %q, want blocked", got.Status)
	}
}

func TestBlockTimeSlot_BookedSlotAborts(t *testing.T) {
	svc, _, slots, doctorID := newTestService()
	svc.now = func() time.Time { return monday.Time }

	wednesday := NewDate(2026, time.September, 9)
	existing := &Slot{DoctorID: doctorID, Date: wednesday, Day: Wednesday, Start: tod(13, 0), End: tod(13, 30), Capacity: 1, BookedCount: 1, Status: StatusBooked}
	if err := slots.Create(context.Background(), existing); err != nil {
		t.Fatal(err)
	}

	_, err := svc.BlockTimeSlot(context.Background(), doctorID, Wednesday, tod(13, 0), tod(14, 0), "")
	if !errors.Is(err, ErrSlotHasBookings) {
		t.Errorf("expected ErrSlotHasBookings, got %v", err)
	}
}

func TestBlockTimeSlot_OverlappingBookedSlotAborts(t *testing.T) {
	svc, _, slots, doctorID := newTestService()
	svc.now = func() time.Time { return monday.Time }

	// Booked slot inside the window but not aligned to its start.
	wednesday := NewDate(2026, time.September, 9)
	existing := &Slot{DoctorID: doctorID, Date: wednesday, Day: Wednesday, Start: tod(13, 30), End: tod(14, 0), Capacity: 1, BookedCount: 1, Status: StatusBooked}
	if err := slots.Create(context.Background(), existing); err != nil {
		t.Fatal(err)
	}

	_, err := svc.BlockTimeSlot(context.Background(), doctorID, Wednesday, tod(13, 0), tod(14, 0), "")
	if !errors.Is(err, ErrSlotHasBookings) {
		t.Fatalf("expected ErrSlotHasBookings, got %v", err)
	}

	got, err := svc.slots.GetByID(context.Background(), existing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusBooked || got.BookedCount != 1 {
		t.Errorf("booked slot changed by aborted block: status=%q booked=%d", got.Status, got.BookedCount)
	}
}

func TestBlockTimeSlot_BlocksOverlappingEmptySlots(t *testing.T) {
	svc, _, slots, doctorID := newTestService()
	svc.now = func() time.Time { return monday.Time }

	wednesday := NewDate(2026, time.September, 9)
	aligned := &Slot{DoctorID: doctorID, Date: wednesday, Day: Wednesday, Start: tod(13, 0), End: tod(13, 30), Capacity: 1, Status: StatusAvailable}
	offset := &Slot{DoctorID: doctorID, Date: wednesday, Day: Wednesday, Start: tod(13, 30), End: tod(14, 0), Capacity: 1, Status: StatusAvailable}
	outside := &Slot{DoctorID: doctorID, Date: wednesday, Day: Wednesday, Start: tod(14, 0), End: tod(14, 30), Capacity: 1, Status: StatusAvailable}
	for _, s := range []*Slot{aligned, offset, outside} {
		if err := slots.Create(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.BlockTimeSlot(context.Background(), doctorID, Wednesday, tod(13, 0), tod(14, 0), ""); err != nil {
		t.Fatalf("BlockTimeSlot: %v", err)
	}

	for name, want := range map[uuid.UUID]SlotStatus{aligned.ID: StatusBlocked, offset.ID: StatusBlocked, outside.ID: StatusAvailable} {
		got, err := svc.slots.GetByID(context.Background(), name)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != want {
			t.Errorf("slot %s-%s status = %q, want %q", got.Start, got.End, got.Status, want)
		}
	}
}

func TestBlockTimeSlot_InvalidWindow(t *testing.T) {
	svc, _, _, doctorID := newTestService()

	_, err := svc.BlockTimeSlot(context.Background(), doctorID, Wednesday, tod(14, 0), tod(13, 0), "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

// -- GetSchedule / ListSlots --

func TestGetSchedule(t *testing.T) {
	svc, _, _, doctorID := newTestService()

	rules, err := svc.GetSchedule(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("expected empty schedule, got %d rules", len(rules))
	}

	week := NewDate(2026, time.September, 13)
	if _, err := svc.ReplaceSchedule(context.Background(), doctorID, weekdayRules(Monday, Friday), monday, week); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	rules, err = svc.GetSchedule(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if len(rules) != 2 {
		t.Errorf("expected 2 rules, got %d", len(rules))
	}
}

func TestListSlots_DateFilter(t *testing.T) {
	svc, _, _, doctorID := newTestService()

	if _, err := svc.GenerateSlots(context.Background(), doctorID, weekParams()); err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}

	tuesday := NewDate(2026, time.September, 8)
	slots, err := svc.ListSlots(context.Background(), doctorID, &tuesday, &tuesday)
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	if len(slots) != 6 {
		t.Errorf("expected 6 slots for tuesday, got %d", len(slots))
	}

	all, err := svc.ListSlots(context.Background(), doctorID, nil, nil)
	if err != nil {
		t.Fatalf("ListSlots all: %v", err)
	}
	if len(all) != 30 {
		t.Errorf("expected 30 slots, got %d", len(all))
	}
}

func TestListSlots_UnknownDoctor(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.ListSlots(context.Background(), uuid.New(), nil, nil)
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}
