package labs

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

// Repository persists lab orders and their panels.
type Repository struct {
	pool db
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("labs: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(pool db) *Repository {
	if pool == nil {
		panic("labs: db required")
	}
	return &Repository{pool: pool}
}

const orderColumns = `id, code, patient_id, physician_id, consultation_id, priority, status, notes, requested_at, completed_at`

func scanOrder(row pgx.Row, o *LabOrder) error {
	return row.Scan(&o.ID, &o.Code, &o.PatientID, &o.PhysicianID, &o.ConsultationID,
		&o.Priority, &o.Status, &o.Notes, &o.RequestedAt, &o.CompletedAt)
}

// Create writes an order and its panels in one transaction.
func (r *Repository) Create(ctx context.Context, o *LabOrder) error {
	if len(o.Panels) == 0 {
		return ErrNoPanels
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.RequestedAt = time.Now().UTC()
	o.Status = StatusPending
	if o.Code == "" {
		o.Code = scheduling.NewCode("LAB", o.RequestedAt)
	}
	if o.Priority == "" {
		o.Priority = PriorityRoutine
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("labs: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO lab_orders (id, code, patient_id, physician_id, consultation_id, priority, status, notes, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Code, o.PatientID, o.PhysicianID, o.ConsultationID, o.Priority, o.Status,
		o.Notes, o.RequestedAt); err != nil {
		return fmt.Errorf("labs: insert order: %w", err)
	}

	for i := range o.Panels {
		p := &o.Panels[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.OrderID = o.ID
		if _, err := tx.Exec(ctx, `
			INSERT INTO lab_order_panels (id, order_id, name, unit, reference_range)
			VALUES ($1, $2, $3, $4, $5)`,
			p.ID, o.ID, p.Name, p.Unit, p.ReferenceRange); err != nil {
			return fmt.Errorf("labs: insert panel: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("labs: commit: %w", err)
	}
	return nil
}

// Get loads an order with its panels.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*LabOrder, error) {
	var o LabOrder
	err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM lab_orders WHERE id = $1`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("labs: load order: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, name, result, unit, reference_range, flag
		FROM lab_order_panels WHERE order_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("labs: load panels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Panel
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Name, &p.Result, &p.Unit, &p.ReferenceRange, &p.Flag); err != nil {
			return nil, fmt.Errorf("labs: scan panel: %w", err)
		}
		o.Panels = append(o.Panels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

// SetStatus moves an order under the lab state guard.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, to Status) (*LabOrder, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("labs: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o LabOrder
	err = scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM lab_orders WHERE id = $1 FOR UPDATE`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("labs: lock order: %w", err)
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	now := time.Now().UTC()
	var completedAt *time.Time
	if to == StatusCompleted {
		completedAt = &now
	}
	if _, err := tx.Exec(ctx, `
		UPDATE lab_orders SET status = $2, completed_at = $3 WHERE id = $1`, id, to, completedAt); err != nil {
		return nil, fmt.Errorf("labs: update status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("labs: commit: %w", err)
	}
	o.Status = to
	o.CompletedAt = completedAt
	return &o, nil
}

// PanelResult carries one recorded measurement.
type PanelResult struct {
	PanelID uuid.UUID `json:"panel_id"`
	Result  string    `json:"result"`
	Flag    string    `json:"flag"`
}

// RecordResults writes panel results and completes the order in one
// transaction. The order must be in process.
func (r *Repository) RecordResults(ctx context.Context, id uuid.UUID, results []PanelResult) (*LabOrder, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("labs: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var o LabOrder
	err = scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM lab_orders WHERE id = $1 FOR UPDATE`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("labs: lock order: %w", err)
	}
	if !CanTransition(o.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCompleted)
	}

	for _, res := range results {
		if _, err := tx.Exec(ctx, `
			UPDATE lab_order_panels SET result = $2, flag = $3 WHERE id = $1 AND order_id = $4`,
			res.PanelID, res.Result, res.Flag, id); err != nil {
			return nil, fmt.Errorf("labs: record result: %w", err)
		}
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE lab_orders SET status = $2, completed_at = $3 WHERE id = $1`,
		id, StatusCompleted, now); err != nil {
		return nil, fmt.Errorf("labs: complete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("labs: commit: %w", err)
	}
	o.Status = StatusCompleted
	o.CompletedAt = &now
	return &o, nil
}

// ListByPatient returns a patient's orders, newest first, without panels.
func (r *Repository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]LabOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM lab_orders WHERE patient_id = $1 ORDER BY requested_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("labs: list by patient: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListQueue returns pending and in-process orders, most urgent first.
func (r *Repository) ListQueue(ctx context.Context) ([]LabOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM lab_orders
		WHERE status IN ('pending', 'in_process')
		ORDER BY CASE priority WHEN 'stat' THEN 0 WHEN 'urgent' THEN 1 ELSE 2 END, requested_at`)
	if err != nil {
		return nil, fmt.Errorf("labs: list queue: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListAll dumps every order. Used by the backup job.
func (r *Repository) ListAll(ctx context.Context) ([]LabOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM lab_orders ORDER BY requested_at`)
	if err != nil {
		return nil, fmt.Errorf("labs: list all: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListInRange returns orders requested within [from, to), without panels.
func (r *Repository) ListInRange(ctx context.Context, from, to time.Time) ([]LabOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM lab_orders
		WHERE requested_at >= $1 AND requested_at < $2
		ORDER BY requested_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("labs: list in range: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// TopPanelsInRange tallies panel names across orders requested within
// [from, to).
func (r *Repository) TopPanelsInRange(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.name, COUNT(*)
		FROM lab_order_panels p
		JOIN lab_orders o ON o.id = p.order_id
		WHERE o.requested_at >= $1 AND o.requested_at < $2
		GROUP BY p.name`, from, to)
	if err != nil {
		return nil, fmt.Errorf("labs: top panels: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("labs: scan panel count: %w", err)
		}
		out[name] = n
	}
	return out, rows.Err()
}

// CountByStatusInRange tallies orders requested within [from, to) by status.
func (r *Repository) CountByStatusInRange(ctx context.Context, from, to time.Time) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM lab_orders
		WHERE requested_at >= $1 AND requested_at < $2
		GROUP BY status`, from, to)
	if err != nil {
		return nil, fmt.Errorf("labs: count by status: %w", err)
	}
	defer rows.Close()

	out := map[Status]int{}
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("labs: scan count: %w", err)
		}
		out[s] = n
	}
	return out, rows.Err()
}

func collect(rows pgx.Rows) ([]LabOrder, error) {
	out := []LabOrder{}
	for rows.Next() {
		var o LabOrder
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("labs: scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
