package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var appointmentCols = []string{
	"id", "code", "patient_id", "physician_id", "starts_at", "duration_minutes", "kind", "status",
	"room", "reason", "cancel_reason", "cancelled_at", "cancelled_by", "reminder_sent",
	"created_by", "created_at", "updated_at",
}

func appointmentRow(id uuid.UUID, status Status, startsAt time.Time) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows(appointmentCols).AddRow(
		id, "APT-20250303-ABCD", uuid.New(), uuid.New(), startsAt, 30, KindGeneral, status,
		"101", "checkup", "", (*time.Time)(nil), (*uuid.UUID)(nil), false, uuid.New(), now, now)
}

func TestBookAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	a := &Appointment{
		PatientID:       uuid.New(),
		PhysicianID:     uuid.New(),
		StartsAt:        time.Date(2025, 3, 3, 8, 30, 0, 0, time.UTC),
		DurationMinutes: 30,
		Kind:            KindGeneral,
		Room:            "101",
		CreatedBy:       uuid.New(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(a.PhysicianID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(a.PhysicianID, a.StartsAt, a.StartsAt.Add(30*time.Minute)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), a.PatientID, a.PhysicianID, a.StartsAt,
			30, KindGeneral, StatusScheduled, "101", "", a.CreatedBy, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := repo.Book(context.Background(), a); err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Fatal("expected an id to be assigned")
	}
	if !strings.HasPrefix(a.Code, "APT-20250303-") {
		t.Fatalf("unexpected code %q", a.Code)
	}
	if a.Status != StatusScheduled {
		t.Fatalf("unexpected status %q", a.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookAppointmentConflictLeavesLedgerUntouched(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	a := &Appointment{
		PatientID:       uuid.New(),
		PhysicianID:     uuid.New(),
		StartsAt:        time.Date(2025, 3, 3, 8, 30, 0, 0, time.UTC),
		DurationMinutes: 30,
		Kind:            KindGeneral,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(a.PhysicianID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(a.PhysicianID, a.StartsAt, a.StartsAt.Add(30*time.Minute)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	if err := repo.Book(context.Background(), a); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookAppointmentExclusionBackstop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	a := &Appointment{
		PatientID:       uuid.New(),
		PhysicianID:     uuid.New(),
		StartsAt:        time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Kind:            KindGeneral,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(a.PhysicianID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(a.PhysicianID, a.StartsAt, a.StartsAt.Add(30*time.Minute)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), a.PatientID, a.PhysicianID, a.StartsAt,
			30, KindGeneral, StatusScheduled, "", "", uuid.Nil, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23P01"})
	mock.ExpectRollback()

	if err := repo.Book(context.Background(), a); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionRejectsDisallowedMove(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM appointments").WithArgs(id).
		WillReturnRows(appointmentRow(id, StatusCompleted, time.Now().UTC()))
	mock.ExpectRollback()

	if _, err := repo.Transition(context.Background(), id, StatusCancelled, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionCancelRecordsAudit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	id := uuid.New()
	actor := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM appointments").WithArgs(id).
		WillReturnRows(appointmentRow(id, StatusScheduled, time.Now().UTC()))
	mock.ExpectExec("UPDATE appointments").
		WithArgs(id, StatusCancelled, "patient request", pgxmock.AnyArg(), actor).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a, err := repo.Transition(context.Background(), id, StatusCancelled,
		&CancelDetails{Reason: "patient request", Actor: actor})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if a.Status != StatusCancelled {
		t.Fatalf("unexpected status %q", a.Status)
	}
	if a.CancelReason != "patient request" || a.CancelledAt == nil || a.CancelledBy == nil || *a.CancelledBy != actor {
		t.Fatalf("audit fields not recorded: %#v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTransitionNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM appointments").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	if _, err := repo.Transition(context.Background(), id, StatusConfirmed, nil); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestCreateTemplateDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	tpl := &ScheduleTemplate{
		PhysicianID: uuid.New(),
		DayOfWeek:   1,
		StartMinute: 480,
		EndMinute:   600,
		SlotMinutes: 30,
		Active:      true,
	}

	mock.ExpectExec("INSERT INTO schedule_templates").
		WithArgs(pgxmock.AnyArg(), tpl.PhysicianID, 1, 480, 600, 30, 0, true, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.CreateTemplate(context.Background(), tpl); !errors.Is(err, ErrTemplateExists) {
		t.Fatalf("expected ErrTemplateExists, got %v", err)
	}
}

func TestGetTemplateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newRepositoryWithDB(mock)

	mock.ExpectQuery("SELECT (.+) FROM schedule_templates").WithArgs(pgxmock.AnyArg(), 3).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetTemplate(context.Background(), uuid.New(), 3); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}
