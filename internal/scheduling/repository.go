package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// db is the slice of pgxpool.Pool the repository needs. Mocks implement it
// in tests.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for schedule templates and the
// appointment ledger.
type Repository struct {
	pool db
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(pool db) *Repository {
	if pool == nil {
		panic("scheduling: db required")
	}
	return &Repository{pool: pool}
}

const templateColumns = `id, physician_id, day_of_week, start_minute, end_minute, slot_minutes, max_per_day, active, created_at, updated_at`

func scanTemplate(row pgx.Row, t *ScheduleTemplate) error {
	return row.Scan(&t.ID, &t.PhysicianID, &t.DayOfWeek, &t.StartMinute, &t.EndMinute,
		&t.SlotMinutes, &t.MaxPerDay, &t.Active, &t.CreatedAt, &t.UpdatedAt)
}

// CreateTemplate inserts a weekly template. A second active template for the
// same (physician, weekday) violates the partial unique index and is reported
// as ErrTemplateExists.
func (r *Repository) CreateTemplate(ctx context.Context, t *ScheduleTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_templates (id, physician_id, day_of_week, start_minute, end_minute, slot_minutes, max_per_day, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		t.ID, t.PhysicianID, t.DayOfWeek, int(t.StartMinute), int(t.EndMinute),
		t.SlotMinutes, t.MaxPerDay, t.Active, now)
	if isUniqueViolation(err) {
		return ErrTemplateExists
	}
	if err != nil {
		return fmt.Errorf("scheduling: insert template: %w", err)
	}
	return nil
}

// UpdateTemplate rewrites an existing template row.
func (r *Repository) UpdateTemplate(ctx context.Context, t *ScheduleTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	ct, err := r.pool.Exec(ctx, `
		UPDATE schedule_templates
		SET day_of_week = $2, start_minute = $3, end_minute = $4, slot_minutes = $5,
		    max_per_day = $6, active = $7, updated_at = $8
		WHERE id = $1`,
		t.ID, t.DayOfWeek, int(t.StartMinute), int(t.EndMinute), t.SlotMinutes,
		t.MaxPerDay, t.Active, t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrTemplateExists
	}
	if err != nil {
		return fmt.Errorf("scheduling: update template: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// GetTemplate returns the active template for a physician and ISO weekday.
func (r *Repository) GetTemplate(ctx context.Context, physicianID uuid.UUID, dayOfWeek int) (*ScheduleTemplate, error) {
	var t ScheduleTemplate
	err := scanTemplate(r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE physician_id = $1 AND day_of_week = $2 AND active`,
		physicianID, dayOfWeek), &t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: load template: %w", err)
	}
	return &t, nil
}

// ListTemplates returns every template for a physician, or all templates when
// physicianID is uuid.Nil.
func (r *Repository) ListTemplates(ctx context.Context, physicianID uuid.UUID) ([]ScheduleTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM schedule_templates ORDER BY physician_id, day_of_week`
	args := []any{}
	if physicianID != uuid.Nil {
		query = `SELECT ` + templateColumns + ` FROM schedule_templates WHERE physician_id = $1 ORDER BY day_of_week`
		args = append(args, physicianID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list templates: %w", err)
	}
	defer rows.Close()

	out := []ScheduleTemplate{}
	for rows.Next() {
		var t ScheduleTemplate
		if err := scanTemplate(rows, &t); err != nil {
			return nil, fmt.Errorf("scheduling: scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const appointmentColumns = `id, code, patient_id, physician_id, starts_at, duration_minutes, kind, status,
	room, reason, cancel_reason, cancelled_at, cancelled_by, reminder_sent, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row, a *Appointment) error {
	return row.Scan(&a.ID, &a.Code, &a.PatientID, &a.PhysicianID, &a.StartsAt, &a.DurationMinutes,
		&a.Kind, &a.Status, &a.Room, &a.Reason, &a.CancelReason, &a.CancelledAt, &a.CancelledBy,
		&a.ReminderSent, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
}

// Book inserts an appointment after the overlap check, both inside one
// transaction. A per-physician advisory lock serializes concurrent bookings
// for the same physician; the exclusion constraint on active intervals is the
// backstop. Either path surfaces as ErrSlotConflict with nothing written.
func (r *Repository) Book(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Status = StatusScheduled
	if a.Code == "" {
		a.Code = NewCode("APT", a.StartsAt)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduling: begin booking: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, a.PhysicianID); err != nil {
		return fmt.Errorf("scheduling: physician lock: %w", err)
	}

	var conflict bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE physician_id = $1
			  AND status IN ('scheduled', 'confirmed')
			  AND tstzrange(starts_at, starts_at + make_interval(mins => duration_minutes)) && tstzrange($2, $3)
		)`, a.PhysicianID, a.StartsAt, a.EndsAt()).Scan(&conflict)
	if err != nil {
		return fmt.Errorf("scheduling: conflict check: %w", err)
	}
	if conflict {
		return ErrSlotConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, code, patient_id, physician_id, starts_at, duration_minutes, kind, status,
			room, reason, reminder_sent, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, $11, $12, $12)`,
		a.ID, a.Code, a.PatientID, a.PhysicianID, a.StartsAt, a.DurationMinutes, a.Kind,
		a.Status, a.Room, a.Reason, a.CreatedBy, now)
	if isExclusionViolation(err) {
		return ErrSlotConflict
	}
	if err != nil {
		return fmt.Errorf("scheduling: insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("scheduling: commit booking: %w", err)
	}
	return nil
}

// Get loads one appointment by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var a Appointment
	err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: load appointment: %w", err)
	}
	return &a, nil
}

// CancelDetails carries the audit fields recorded with a cancellation.
type CancelDetails struct {
	Reason string
	Actor  uuid.UUID
}

// Transition moves an appointment to a new state under the ledger's guard
// table. The current row is locked, the guard checked, and the update applied
// in one transaction; a disallowed transition leaves the row untouched.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, to Status, cancel *CancelDetails) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduling: begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var a Appointment
	err = scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: lock appointment: %w", err)
	}

	if !CanTransition(a.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}

	now := time.Now().UTC()
	if to == StatusCancelled {
		if cancel == nil {
			cancel = &CancelDetails{}
		}
		_, err = tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2, cancel_reason = $3, cancelled_at = $4, cancelled_by = $5, updated_at = $4
			WHERE id = $1`, id, to, cancel.Reason, now, cancel.Actor)
		a.CancelReason = cancel.Reason
		a.CancelledAt = &now
		actor := cancel.Actor
		a.CancelledBy = &actor
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`, id, to, now)
	}
	if err != nil {
		return nil, fmt.Errorf("scheduling: update status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("scheduling: commit transition: %w", err)
	}
	a.Status = to
	a.UpdatedAt = now
	return &a, nil
}

// ListForDate returns a physician's appointments whose start falls on the
// given calendar date (UTC), optionally restricted to active states.
func (r *Repository) ListForDate(ctx context.Context, physicianID uuid.UUID, date time.Time, activeOnly bool) ([]Appointment, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE physician_id = $1 AND starts_at >= $2 AND starts_at < $3`
	if activeOnly {
		query += ` AND status IN ('scheduled', 'confirmed')`
	}
	query += ` ORDER BY starts_at`

	rows, err := r.pool.Query(ctx, query, physicianID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list for date: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListRange returns appointments starting within [from, to), optionally
// filtered by physician. Used by the calendar feed.
func (r *Repository) ListRange(ctx context.Context, from, to time.Time, physicianID uuid.UUID) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments WHERE starts_at >= $1 AND starts_at < $2`
	args := []any{from, to}
	if physicianID != uuid.Nil {
		query += ` AND physician_id = $3`
		args = append(args, physicianID)
	}
	query += ` ORDER BY starts_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list range: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// ListAll dumps the whole ledger, newest first. Used by the backup job.
func (r *Repository) ListAll(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list all: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	out := []Appointment{}
	for rows.Next() {
		var a Appointment
		if err := scanAppointment(rows, &a); err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReminderAppointment joins an active appointment with the contact details
// the reminder dispatcher needs.
type ReminderAppointment struct {
	ID            uuid.UUID
	Code          string
	StartsAt      time.Time
	Room          string
	PatientName   string
	PatientEmail  string
	PhysicianName string
}

// ListDueReminders returns active appointments on the given date with no
// reminder sent yet.
func (r *Repository) ListDueReminders(ctx context.Context, date time.Time, limit int) ([]ReminderAppointment, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.code, a.starts_at, a.room,
		       p.first_name || ' ' || p.last_name, COALESCE(p.email, ''),
		       u.first_name || ' ' || u.last_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users u ON u.id = a.physician_id
		WHERE a.starts_at >= $1 AND a.starts_at < $2
		  AND a.status IN ('scheduled', 'confirmed')
		  AND NOT a.reminder_sent
		ORDER BY a.starts_at
		LIMIT $3`, dayStart, dayEnd, limit)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list due reminders: %w", err)
	}
	defer rows.Close()

	out := []ReminderAppointment{}
	for rows.Next() {
		var ra ReminderAppointment
		if err := rows.Scan(&ra.ID, &ra.Code, &ra.StartsAt, &ra.Room,
			&ra.PatientName, &ra.PatientEmail, &ra.PhysicianName); err != nil {
			return nil, fmt.Errorf("scheduling: scan reminder: %w", err)
		}
		out = append(out, ra)
	}
	return out, rows.Err()
}

// MarkReminderSent flips the reminder flag after a successful send.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE appointments SET reminder_sent = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("scheduling: mark reminder sent: %w", err)
	}
	return nil
}

// DetailedAppointment is an appointment joined with the display names the
// calendar feed renders.
type DetailedAppointment struct {
	Appointment
	PatientName   string
	PhysicianName string
}

// ListRangeDetailed is ListRange plus patient and physician display names.
func (r *Repository) ListRangeDetailed(ctx context.Context, from, to time.Time, physicianID uuid.UUID) ([]DetailedAppointment, error) {
	query := `
		SELECT a.id, a.code, a.patient_id, a.physician_id, a.starts_at, a.duration_minutes, a.kind, a.status,
		       a.room, a.reason, a.cancel_reason, a.cancelled_at, a.cancelled_by, a.reminder_sent,
		       a.created_by, a.created_at, a.updated_at,
		       p.first_name || ' ' || p.last_name,
		       u.first_name || ' ' || u.last_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users u ON u.id = a.physician_id
		WHERE a.starts_at >= $1 AND a.starts_at < $2`
	args := []any{from, to}
	if physicianID != uuid.Nil {
		query += ` AND a.physician_id = $3`
		args = append(args, physicianID)
	}
	query += ` ORDER BY a.starts_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list range detailed: %w", err)
	}
	defer rows.Close()

	out := []DetailedAppointment{}
	for rows.Next() {
		var d DetailedAppointment
		if err := rows.Scan(&d.ID, &d.Code, &d.PatientID, &d.PhysicianID, &d.StartsAt, &d.DurationMinutes,
			&d.Kind, &d.Status, &d.Room, &d.Reason, &d.CancelReason, &d.CancelledAt, &d.CancelledBy,
			&d.ReminderSent, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
			&d.PatientName, &d.PhysicianName); err != nil {
			return nil, fmt.Errorf("scheduling: scan detailed appointment: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
