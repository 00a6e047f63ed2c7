package users

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

// Repository persists staff accounts.
type Repository struct {
	pool db
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("users: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(pool db) *Repository {
	if pool == nil {
		panic("users: db required")
	}
	return &Repository{pool: pool}
}

const columns = `id, username, password_hash, first_name, last_name, email, role, specialty, active, created_at, updated_at`

func scan(row pgx.Row, u *User) error {
	return row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Email, &u.Role, &u.Specialty, &u.Active, &u.CreatedAt, &u.UpdatedAt)
}

func (r *Repository) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Active = true
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, first_name, last_name, email, role, specialty, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9, $9)`,
		u.ID, u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Email, u.Role, u.Specialty, now)
	if isUniqueViolation(err) {
		return ErrUsernameExists
	}
	if err != nil {
		return fmt.Errorf("users: insert: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()
	ct, err := r.pool.Exec(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, email = $4, role = $5, specialty = $6, active = $7, updated_at = $8
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.Email, u.Role, u.Specialty, u.Active, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("users: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("users: update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM users WHERE id = $1`, id), &u)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: load: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM users WHERE username = $1`, username), &u)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: load by username: %w", err)
	}
	return &u, nil
}

// List returns active users, optionally restricted to one role.
func (r *Repository) List(ctx context.Context, role string) ([]User, error) {
	query := `SELECT ` + columns + ` FROM users WHERE active ORDER BY last_name, first_name`
	args := []any{}
	if role != "" {
		query = `SELECT ` + columns + ` FROM users WHERE active AND role = $1 ORDER BY last_name, first_name`
		args = append(args, role)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		if err := scan(rows, &u); err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Deactivate disables a login without deleting the account.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE users SET active = false, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("users: deactivate: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
