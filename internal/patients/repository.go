package patients

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

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists patient records.
type Repository struct {
	pool db
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(pool db) *Repository {
	if pool == nil {
		panic("patients: db required")
	}
	return &Repository{pool: pool}
}

const columns = `id, national_id, first_name, last_name, birth_date, sex, blood_type, phone, email,
	address, allergies, emergency_contact, emergency_phone, active, created_at, updated_at`

func scan(row pgx.Row, p *Patient) error {
	return row.Scan(&p.ID, &p.NationalID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Sex,
		&p.BloodType, &p.Phone, &p.Email, &p.Address, &p.Allergies,
		&p.EmergencyContact, &p.EmergencyPhone, &p.Active, &p.CreatedAt, &p.UpdatedAt)
}

// Create registers a patient. A duplicate national id is reported as
// ErrNationalIDExists.
func (r *Repository) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Active = true
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, national_id, first_name, last_name, birth_date, sex, blood_type,
			phone, email, address, allergies, emergency_contact, emergency_phone, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, true, $14, $14)`,
		p.ID, p.NationalID, p.FirstName, p.LastName, p.BirthDate, p.Sex, p.BloodType,
		p.Phone, p.Email, p.Address, p.Allergies, p.EmergencyContact, p.EmergencyPhone, now)
	if isUniqueViolation(err) {
		return ErrNationalIDExists
	}
	if err != nil {
		return fmt.Errorf("patients: insert: %w", err)
	}
	return nil
}

// Update rewrites a patient's demographic and contact fields.
func (r *Repository) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()
	ct, err := r.pool.Exec(ctx, `
		UPDATE patients
		SET national_id = $2, first_name = $3, last_name = $4, birth_date = $5, sex = $6,
		    blood_type = $7, phone = $8, email = $9, address = $10, allergies = $11,
		    emergency_contact = $12, emergency_phone = $13, active = $14, updated_at = $15
		WHERE id = $1`,
		p.ID, p.NationalID, p.FirstName, p.LastName, p.BirthDate, p.Sex, p.BloodType,
		p.Phone, p.Email, p.Address, p.Allergies, p.EmergencyContact, p.EmergencyPhone,
		p.Active, p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrNationalIDExists
	}
	if err != nil {
		return fmt.Errorf("patients: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM patients WHERE id = $1`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patients: load: %w", err)
	}
	return &p, nil
}

func (r *Repository) GetByNationalID(ctx context.Context, nationalID string) (*Patient, error) {
	var p Patient
	err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM patients WHERE national_id = $1`, nationalID), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patients: load by national id: %w", err)
	}
	return &p, nil
}

// Search matches active patients by name fragment or national id prefix.
// An empty query lists active patients.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+`
		FROM patients
		WHERE active
		  AND ($1 = '' OR national_id LIKE $1 || '%'
		       OR first_name ILIKE '%' || $1 || '%'
		       OR last_name ILIKE '%' || $1 || '%')
		ORDER BY last_name, first_name
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("patients: search: %w", err)
	}
	defer rows.Close()

	out := []Patient{}
	for rows.Next() {
		var p Patient
		if err := scan(rows, &p); err != nil {
			return nil, fmt.Errorf("patients: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Deactivate soft-deletes a record. Medical history stays queryable.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE patients SET active = false, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("patients: deactivate: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll dumps every record. Used by the backup job.
func (r *Repository) ListAll(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM patients ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("patients: list all: %w", err)
	}
	defer rows.Close()

	out := []Patient{}
	for rows.Next() {
		var p Patient
		if err := scan(rows, &p); err != nil {
			return nil, fmt.Errorf("patients: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountRegisteredSince counts patients created on or after the cutoff.
func (r *Repository) CountRegisteredSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE created_at >= $1`, cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("patients: count registered: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
