package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

// -- Rule Repository --

type ruleRepoPG struct {
	pool *pgxpool.Pool
}

func NewRuleRepo(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepoPG{pool: pool}
}

func (r *ruleRepoPG) conn(ctx context.Context) db.Queryable {
	return db.From(ctx, r.pool)
}

const ruleCols = `id, doctor_id, day, start_minute, end_minute, duration_minutes, available, notes, created_at, updated_at`

func scanRule(row pgx.Row) (*ScheduleRule, error) {
	rule := &ScheduleRule{}
	var day string
	err := row.Scan(&rule.ID, &rule.DoctorID, &day, &rule.Start, &rule.End,
		&rule.DurationMinutes, &rule.Available, &rule.Notes, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rule.Day = DayOfWeek(day)
	return rule, nil
}

func (r *ruleRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM schedule_rule
		WHERE doctor_id = $1
		ORDER BY array_position(ARRAY['monday','tuesday','wednesday','thursday','friday','saturday','sunday'], day), start_minute`,
		doctorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*ScheduleRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *ruleRepoPG) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule_rule WHERE doctor_id = $1`, doctorID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *ruleRepoPG) CreateBatch(ctx context.Context, rules []*ScheduleRule) error {
	for _, rule := range rules {
		if rule.ID == uuid.Nil {
			rule.ID = uuid.New()
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO schedule_rule (id, doctor_id, day, start_minute, end_minute, duration_minutes, available, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rule.ID, rule.DoctorID, string(rule.Day), int(rule.Start), int(rule.End),
			rule.DurationMinutes, rule.Available, rule.Notes,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// -- Slot Repository --

type slotRepoPG struct {
	pool *pgxpool.Pool
}

func NewSlotRepo(pool *pgxpool.Pool) SlotRepository {
	return &slotRepoPG{pool: pool}
}

func (r *slotRepoPG) conn(ctx context.Context) db.Queryable {
	return db.From(ctx, r.pool)
}

const slotCols = `id, doctor_id, date, day, start_minute, end_minute, capacity, booked_count, status, notes, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	s := &Slot{}
	var day, status string
	var date time.Time
	err := row.Scan(&s.ID, &s.DoctorID, &date, &day, &s.Start, &s.End,
		&s.Capacity, &s.BookedCount, &status, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Date = DateOf(date)
	s.Day = DayOfWeek(day)
	s.Status = SlotStatus(status)
	return s, nil
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return s, err
}

func (r *slotRepoPG) GetByStart(ctx context.Context, doctorID uuid.UUID, date Date, start TimeOfDay) (*Slot, error) {
	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, `
		SELECT `+slotCols+` FROM slot
		WHERE doctor_id = $1 AND date = $2 AND start_minute = $3`,
		doctorID, date.Time, int(start),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return s, err
}

func (r *slotRepoPG) Create(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO slot (id, doctor_id, date, day, start_minute, end_minute, capacity, booked_count, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.DoctorID, s.Date.Time, string(s.Day), int(s.Start), int(s.End),
		s.Capacity, s.BookedCount, string(s.Status), s.Notes,
	)
	return err
}

func (r *slotRepoPG) Update(ctx context.Context, s *Slot) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE slot SET
			date=$2, day=$3, start_minute=$4, end_minute=$5, capacity=$6,
			booked_count=$7, status=$8, notes=$9, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Date.Time, string(s.Day), int(s.Start), int(s.End),
		s.Capacity, s.BookedCount, string(s.Status), s.Notes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *slotRepoPG) List(ctx context.Context, doctorID uuid.UUID, from, to *Date) ([]*Slot, error) {
	query := `SELECT ` + slotCols + ` FROM slot WHERE doctor_id = $1`
	args := []any{doctorID}
	if from != nil {
		args = append(args, from.Time)
		query += ` AND date >= $2`
	}
	if to != nil {
		args = append(args, to.Time)
		if from != nil {
			query += ` AND date <= $3`
		} else {
			query += ` AND date <= $2`
		}
	}
	query += ` ORDER BY date, start_minute`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *slotRepoPG) DeleteEmpty(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM slot WHERE id = $1 AND booked_count = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a booked slot from a missing one.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrSlotHasBookings
	}
	return nil
}

// TryBook claims one unit of capacity with a single conditional UPDATE. The
// WHERE clause rejects blocked and full slots, so the check and increment are
// one atomic statement and concurrent callers cannot oversubscribe the slot.
func (r *slotRepoPG) TryBook(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, `
		UPDATE slot SET
			booked_count = booked_count + 1,
			status = CASE WHEN booked_count + 1 >= capacity THEN 'booked' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND status <> 'blocked' AND booked_count < capacity
		RETURNING `+slotCols,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrSlotUnavailable
	}
	return s, err
}

func (r *slotRepoPG) Release(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, `
		UPDATE slot SET
			booked_count = GREATEST(booked_count - 1, 0),
			status = CASE
				WHEN status = 'blocked' THEN 'blocked'
				WHEN GREATEST(booked_count - 1, 0) >= capacity THEN 'booked'
				ELSE 'available'
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+slotCols,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return s, err
}

func (r *slotRepoPG) Block(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, `
		UPDATE slot SET status = 'blocked', updated_at = NOW()
		WHERE id = $1 AND booked_count = 0
		RETURNING `+slotCols,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrSlotHasBookings
	}
	return s, err
}

func (r *slotRepoPG) Unblock(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := scanSlot(r.conn(ctx).QueryRow(ctx, `
		UPDATE slot SET
			status = CASE WHEN booked_count >= capacity THEN 'booked' ELSE 'available' END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+slotCols,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	return s, err
}
