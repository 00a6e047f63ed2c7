package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicsuite/hospital-portal/internal/observability/metrics"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

var tracer = otel.Tracer("hospital-portal/scheduling")

// Store is the persistence surface the service drives. *Repository satisfies
// it; tests substitute fakes.
type Store interface {
	CreateTemplate(ctx context.Context, t *ScheduleTemplate) error
	UpdateTemplate(ctx context.Context, t *ScheduleTemplate) error
	GetTemplate(ctx context.Context, physicianID uuid.UUID, dayOfWeek int) (*ScheduleTemplate, error)
	ListTemplates(ctx context.Context, physicianID uuid.UUID) ([]ScheduleTemplate, error)
	Book(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, to Status, cancel *CancelDetails) (*Appointment, error)
	ListForDate(ctx context.Context, physicianID uuid.UUID, date time.Time, activeOnly bool) ([]Appointment, error)
	ListRange(ctx context.Context, from, to time.Time, physicianID uuid.UUID) ([]Appointment, error)
	ListRangeDetailed(ctx context.Context, from, to time.Time, physicianID uuid.UUID) ([]DetailedAppointment, error)
}

// Notifier receives appointment lifecycle events. Implementations must not
// block the booking path longer than an email handoff takes; failures are
// logged, never surfaced to the caller.
type Notifier interface {
	AppointmentBooked(ctx context.Context, a *Appointment) error
	AppointmentConfirmed(ctx context.Context, a *Appointment) error
	AppointmentCancelled(ctx context.Context, a *Appointment) error
}

// AvailabilityCache caches computed free slots per physician and date.
type AvailabilityCache interface {
	Get(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]MinuteOfDay, bool, error)
	Set(ctx context.Context, physicianID uuid.UUID, date time.Time, slots []MinuteOfDay) error
	Invalidate(ctx context.Context, physicianID uuid.UUID, date time.Time) error
}

// Actor identifies who is performing a ledger operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) admin() bool { return a.Role == "admin" }

// Service owns the appointment ledger and the weekly schedule registry.
type Service struct {
	store    Store
	cache    AvailabilityCache
	notifier Notifier
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
}

func NewService(store Store, cache AvailabilityCache, notifier Notifier, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, cache: cache, notifier: notifier, metrics: m, logger: logger}
}

func validateTemplate(t *ScheduleTemplate) error {
	switch {
	case t.PhysicianID == uuid.Nil:
		return errors.New("scheduling: physician id required")
	case t.DayOfWeek < 1 || t.DayOfWeek > 7:
		return fmt.Errorf("scheduling: day_of_week %d out of range", t.DayOfWeek)
	case t.StartMinute >= t.EndMinute:
		return errors.New("scheduling: start must be before end")
	case t.SlotMinutes <= 0:
		return errors.New("scheduling: slot_minutes must be positive")
	case t.MaxPerDay < 0:
		return errors.New("scheduling: max_per_day must not be negative")
	}
	return nil
}

// CreateTemplate registers a physician's weekly window for one weekday.
func (s *Service) CreateTemplate(ctx context.Context, t *ScheduleTemplate) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return err
	}
	s.logger.Info("schedule template created",
		"template_id", t.ID, "physician_id", t.PhysicianID, "day_of_week", t.DayOfWeek)
	return nil
}

// UpdateTemplate rewrites an existing template. Cached availability for the
// physician ages out on its own TTL.
func (s *Service) UpdateTemplate(ctx context.Context, t *ScheduleTemplate) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	return s.store.UpdateTemplate(ctx, t)
}

func (s *Service) ListTemplates(ctx context.Context, physicianID uuid.UUID) ([]ScheduleTemplate, error) {
	return s.store.ListTemplates(ctx, physicianID)
}

// BookRequest is the input to Book.
type BookRequest struct {
	PatientID       uuid.UUID
	PhysicianID     uuid.UUID
	StartsAt        time.Time
	DurationMinutes int
	Kind            Kind
	Room            string
	Reason          string
	CreatedBy       uuid.UUID
}

func (r BookRequest) validate() error {
	switch {
	case r.PatientID == uuid.Nil:
		return errors.New("scheduling: patient id required")
	case r.PhysicianID == uuid.Nil:
		return errors.New("scheduling: physician id required")
	case r.StartsAt.IsZero():
		return errors.New("scheduling: start time required")
	case r.DurationMinutes <= 0:
		return errors.New("scheduling: duration must be positive")
	case !r.Kind.Valid():
		return fmt.Errorf("scheduling: unknown appointment kind %q", r.Kind)
	}
	return nil
}

// Book writes a new scheduled appointment. Conflicting bookings for the same
// physician fail with ErrSlotConflict and leave the ledger untouched.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.physician_id", req.PhysicianID.String()),
		attribute.String("appointment.starts_at", req.StartsAt.UTC().Format(time.RFC3339)),
	)

	if err := req.validate(); err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:       req.PatientID,
		PhysicianID:     req.PhysicianID,
		StartsAt:        req.StartsAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Kind:            req.Kind,
		Room:            req.Room,
		Reason:          req.Reason,
		CreatedBy:       req.CreatedBy,
	}
	if err := s.store.Book(ctx, a); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveBooking("conflict")
		} else {
			s.metrics.ObserveBooking("error")
		}
		return nil, err
	}
	s.metrics.ObserveBooking("ok")
	s.invalidateDay(ctx, a.PhysicianID, a.StartsAt)

	if s.notifier != nil {
		if err := s.notifier.AppointmentBooked(ctx, a); err != nil {
			s.logger.Error("booking notification failed", "appointment_id", a.ID, "error", err)
		}
	}
	s.logger.Info("appointment booked",
		"appointment_id", a.ID, "code", a.Code, "physician_id", a.PhysicianID, "starts_at", a.StartsAt)
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.Get(ctx, id)
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, actor, nil)
}

// Start moves a confirmed appointment to in_progress.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	return s.transition(ctx, id, StatusInProgress, actor, nil)
}

// Complete closes an in_progress appointment.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, actor, nil)
}

// Cancel aborts any non-terminal appointment, recording who and why.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, actor, &CancelDetails{Reason: reason, Actor: actor.ID})
}

// MarkNoShow flags a scheduled appointment whose patient never arrived.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, actor, nil)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, actor Actor, cancel *CancelDetails) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", id.String()),
		attribute.String("appointment.to_status", string(to)),
	)

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.admin() && actor.ID != current.PhysicianID {
		return nil, ErrForbidden
	}

	a, err := s.store.Transition(ctx, id, to, cancel)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveTransition(string(to), "error")
		return nil, err
	}
	s.metrics.ObserveTransition(string(to), "ok")

	// Leaving an active state frees the slot for rebooking.
	if !a.Status.Active() {
		s.invalidateDay(ctx, a.PhysicianID, a.StartsAt)
	}
	if s.notifier != nil {
		switch to {
		case StatusConfirmed:
			if err := s.notifier.AppointmentConfirmed(ctx, a); err != nil {
				s.logger.Error("confirmation notification failed", "appointment_id", a.ID, "error", err)
			}
		case StatusCancelled:
			if err := s.notifier.AppointmentCancelled(ctx, a); err != nil {
				s.logger.Error("cancellation notification failed", "appointment_id", a.ID, "error", err)
			}
		}
	}
	s.logger.Info("appointment transitioned", "appointment_id", a.ID, "to", to, "actor_id", actor.ID)
	return a, nil
}

// Availability is a physician's bookable slots for one date.
type Availability struct {
	Template *ScheduleTemplate
	Slots    []MinuteOfDay
}

// AvailableSlots computes the free slots for a physician on a date, reading
// through the cache. A physician with no active window on that weekday gets
// an Availability with a nil Template and no slots.
func (s *Service) AvailableSlots(ctx context.Context, physicianID uuid.UUID, date time.Time) (*Availability, error) {
	ctx, span := tracer.Start(ctx, "scheduling.available_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("availability.physician_id", physicianID.String()),
		attribute.String("availability.date", date.Format("2006-01-02")),
	)

	start := time.Now()
	tpl, err := s.store.GetTemplate(ctx, physicianID, isoWeekday(date))
	if errors.Is(err, ErrTemplateNotFound) {
		return &Availability{}, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		slots, ok, err := s.cache.Get(ctx, physicianID, date)
		if err != nil {
			s.logger.Warn("availability cache read failed", "physician_id", physicianID, "error", err)
		}
		s.metrics.ObserveCacheLookup(ok)
		if ok {
			s.metrics.ObserveAvailability(time.Since(start).Seconds())
			return &Availability{Template: tpl, Slots: slots}, nil
		}
	}

	appts, err := s.store.ListForDate(ctx, physicianID, date, true)
	if err != nil {
		return nil, err
	}
	slots := FreeSlots(tpl, date, appts)
	if s.cache != nil {
		if err := s.cache.Set(ctx, physicianID, date, slots); err != nil {
			s.logger.Warn("availability cache write failed", "physician_id", physicianID, "error", err)
		}
	}
	s.metrics.ObserveAvailability(time.Since(start).Seconds())
	return &Availability{Template: tpl, Slots: slots}, nil
}

// DaySchedule returns a physician's appointments for one date, all states.
func (s *Service) DaySchedule(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]Appointment, error) {
	return s.store.ListForDate(ctx, physicianID, date, false)
}

// CalendarEvents returns detailed appointments within [from, to) for the
// calendar feed.
func (s *Service) CalendarEvents(ctx context.Context, from, to time.Time, physicianID uuid.UUID) ([]DetailedAppointment, error) {
	if !to.After(from) {
		return nil, errors.New("scheduling: range end must be after start")
	}
	return s.store.ListRangeDetailed(ctx, from, to, physicianID)
}

func (s *Service) invalidateDay(ctx context.Context, physicianID uuid.UUID, at time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, physicianID, at); err != nil {
		s.logger.Warn("availability cache invalidation failed", "physician_id", physicianID, "error", err)
	}
}

// isoWeekday maps time.Weekday to ISO numbering, Monday 1 through Sunday 7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
