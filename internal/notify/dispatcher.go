package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicsuite/hospital-portal/internal/observability/metrics"
	"github.com/clinicsuite/hospital-portal/internal/patients"
	"github.com/clinicsuite/hospital-portal/internal/scheduling"
	"github.com/clinicsuite/hospital-portal/internal/users"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// PatientDirectory resolves patient contact details.
type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
}

// StaffDirectory resolves staff display names.
type StaffDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Dispatcher sends appointment lifecycle emails. It satisfies
// scheduling.Notifier.
type Dispatcher struct {
	sender   EmailSender
	patients PatientDirectory
	staff    StaffDirectory
	metrics  *metrics.NotifyMetrics
	logger   *logging.Logger
}

func NewDispatcher(sender EmailSender, patientDir PatientDirectory, staffDir StaffDirectory,
	m *metrics.NotifyMetrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		sender:   sender,
		patients: patientDir,
		staff:    staffDir,
		metrics:  m,
		logger:   logger,
	}
}

// AppointmentBooked emails the patient a booking confirmation. Patients
// without an email address are skipped silently.
func (d *Dispatcher) AppointmentBooked(ctx context.Context, a *scheduling.Appointment) error {
	return d.send(ctx, a, "booked",
		"Appointment scheduled: "+a.Code,
		"Your appointment %s with %s is scheduled for %s.")
}

// AppointmentConfirmed emails the patient once the front desk confirms.
func (d *Dispatcher) AppointmentConfirmed(ctx context.Context, a *scheduling.Appointment) error {
	return d.send(ctx, a, "confirmed",
		"Appointment confirmed: "+a.Code,
		"Your appointment %s with %s on %s is confirmed.")
}

// AppointmentCancelled emails the patient a cancellation notice.
func (d *Dispatcher) AppointmentCancelled(ctx context.Context, a *scheduling.Appointment) error {
	return d.send(ctx, a, "cancelled",
		"Appointment cancelled: "+a.Code,
		"Your appointment %s with %s on %s has been cancelled.")
}

func (d *Dispatcher) send(ctx context.Context, a *scheduling.Appointment, kind, subject, bodyFormat string) error {
	p, err := d.patients.Get(ctx, a.PatientID)
	if err != nil {
		d.metrics.ObserveSend(kind, err)
		return fmt.Errorf("notify: lookup patient: %w", err)
	}
	if p.Email == "" {
		d.logger.Info("patient has no email, skipping notification",
			"patient_id", a.PatientID, "appointment_id", a.ID, "kind", kind)
		return nil
	}

	physicianName := "your physician"
	if u, err := d.staff.Get(ctx, a.PhysicianID); err == nil {
		physicianName = "Dr. " + u.FullName()
	}

	msg := EmailMessage{
		To:      p.Email,
		ToName:  p.FullName(),
		Subject: subject,
		Body:    fmt.Sprintf(bodyFormat, a.Code, physicianName, a.StartsAt.Format("Mon, 02 Jan 2006 15:04")),
	}
	err = d.sender.Send(ctx, msg)
	d.metrics.ObserveSend(kind, err)
	if err != nil {
		return fmt.Errorf("notify: send %s email: %w", kind, err)
	}
	return nil
}

var _ scheduling.Notifier = (*Dispatcher)(nil)
