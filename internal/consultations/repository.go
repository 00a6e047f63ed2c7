package consultations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicsuite/hospital-portal/internal/scheduling"
)

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists consultation records.
type Repository struct {
	pool db
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("consultations: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(pool db) *Repository {
	if pool == nil {
		panic("consultations: db required")
	}
	return &Repository{pool: pool}
}

const columns = `id, code, appointment_id, patient_id, physician_id, symptoms, diagnosis, treatment,
	notes, weight_kg, height_cm, blood_pressure, temperature_c, heart_rate, created_at`

func scan(row pgx.Row, c *Consultation) error {
	return row.Scan(&c.ID, &c.Code, &c.AppointmentID, &c.PatientID, &c.PhysicianID,
		&c.Symptoms, &c.Diagnosis, &c.Treatment, &c.Notes, &c.WeightKg, &c.HeightCm,
		&c.BloodPressure, &c.TemperatureC, &c.HeartRate, &c.CreatedAt)
}

func prepare(c *Consultation) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	if c.Code == "" {
		c.Code = scheduling.NewCode("CON", c.CreatedAt)
	}
}

const insertSQL = `
	INSERT INTO consultations (id, code, appointment_id, patient_id, physician_id, symptoms, diagnosis,
		treatment, notes, weight_kg, height_cm, blood_pressure, temperature_c, heart_rate, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

func insertArgs(c *Consultation) []any {
	return []any{c.ID, c.Code, c.AppointmentID, c.PatientID, c.PhysicianID, c.Symptoms, c.Diagnosis,
		c.Treatment, c.Notes, c.WeightKg, c.HeightCm, c.BloodPressure, c.TemperatureC, c.HeartRate, c.CreatedAt}
}

// Create inserts a walk-in consultation with no linked appointment.
func (r *Repository) Create(ctx context.Context, c *Consultation) error {
	prepare(c)
	if _, err := r.pool.Exec(ctx, insertSQL, insertArgs(c)...); err != nil {
		return fmt.Errorf("consultations: insert: %w", err)
	}
	return nil
}

// CreateForAppointment writes the consultation and completes its appointment
// in one transaction. The appointment must currently be in progress; anything
// else rolls back with ErrAppointmentNotReady.
func (r *Repository) CreateForAppointment(ctx context.Context, c *Consultation, appointmentID uuid.UUID) error {
	prepare(c)
	c.AppointmentID = &appointmentID

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("consultations: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status scheduling.Status
	err = tx.QueryRow(ctx, `
		SELECT status FROM appointments WHERE id = $1 FOR UPDATE`, appointmentID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduling.ErrAppointmentNotFound
	}
	if err != nil {
		return fmt.Errorf("consultations: lock appointment: %w", err)
	}
	if status != scheduling.StatusInProgress {
		return fmt.Errorf("%w: status %s", ErrAppointmentNotReady, status)
	}

	if _, err := tx.Exec(ctx, insertSQL, insertArgs(c)...); err != nil {
		return fmt.Errorf("consultations: insert: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`,
		appointmentID, scheduling.StatusCompleted, c.CreatedAt); err != nil {
		return fmt.Errorf("consultations: complete appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("consultations: commit: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	var c Consultation
	err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM consultations WHERE id = $1`, id), &c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consultations: load: %w", err)
	}
	return &c, nil
}

// ListByPatient returns a patient's consultations, newest first.
func (r *Repository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Consultation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+` FROM consultations WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("consultations: list by patient: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListByPhysician returns consultations a physician wrote within [from, to).
func (r *Repository) ListByPhysician(ctx context.Context, physicianID uuid.UUID, from, to time.Time) ([]Consultation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+` FROM consultations
		WHERE physician_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC`, physicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("consultations: list by physician: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListInRange returns consultations created within [from, to).
func (r *Repository) ListInRange(ctx context.Context, from, to time.Time) ([]Consultation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+` FROM consultations
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("consultations: list in range: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListAll dumps every record. Used by the backup job.
func (r *Repository) ListAll(ctx context.Context) ([]Consultation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM consultations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("consultations: list all: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// CountInRange counts consultations created within [from, to).
func (r *Repository) CountInRange(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM consultations WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("consultations: count in range: %w", err)
	}
	return n, nil
}

func collect(rows pgx.Rows) ([]Consultation, error) {
	out := []Consultation{}
	for rows.Next() {
		var c Consultation
		if err := scan(rows, &c); err != nil {
			return nil, fmt.Errorf("consultations: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
