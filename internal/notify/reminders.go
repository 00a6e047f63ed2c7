package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicsuite/hospital-portal/internal/observability/metrics"
	"github.com/clinicsuite/hospital-portal/internal/scheduling"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

var reminderTracer = otel.Tracer("hospital-portal/notify")

// ReminderStore lists tomorrow's unsent reminders and flags them sent.
type ReminderStore interface {
	ListDueReminders(ctx context.Context, date time.Time, limit int) ([]scheduling.ReminderAppointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
}

// ReminderWorker emails patients the day before their appointment.
type ReminderWorker struct {
	store     ReminderStore
	sender    EmailSender
	metrics   *metrics.NotifyMetrics
	logger    *logging.Logger
	interval  time.Duration
	batchSize int
}

func NewReminderWorker(store ReminderStore, sender EmailSender, m *metrics.NotifyMetrics, logger *logging.Logger) *ReminderWorker {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReminderWorker{
		store:     store,
		sender:    sender,
		metrics:   m,
		logger:    logger,
		interval:  15 * time.Minute,
		batchSize: 100,
	}
}

func (w *ReminderWorker) WithInterval(interval time.Duration) *ReminderWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

func (w *ReminderWorker) WithBatchSize(size int) *ReminderWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start runs the reminder loop until ctx is cancelled.
func (w *ReminderWorker) Start(ctx context.Context) {
	if w.store == nil || w.sender == nil {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tomorrow := time.Now().UTC().Add(24 * time.Hour)
			if _, err := w.ProcessDue(ctx, tomorrow); err != nil {
				w.logger.Error("reminder pass failed", "error", err)
			}
		}
	}
}

// ProcessDue sends reminders for the given date's unsent active appointments.
// A failed send leaves that appointment unflagged for the next pass; it never
// aborts the batch. Returns the number of reminders sent.
func (w *ReminderWorker) ProcessDue(ctx context.Context, date time.Time) (int, error) {
	ctx, span := reminderTracer.Start(ctx, "notify.process_reminders")
	defer span.End()
	span.SetAttributes(attribute.String("reminders.date", date.Format("2006-01-02")))

	due, err := w.store.ListDueReminders(ctx, date, w.batchSize)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("notify: list due reminders: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	w.logger.Info("processing appointment reminders", "count", len(due), "date", date.Format("2006-01-02"))

	sent := 0
	for i := range due {
		if err := w.processOne(ctx, &due[i]); err != nil {
			w.logger.Error("reminder failed", "appointment_id", due[i].ID, "error", err)
			continue
		}
		sent++
	}
	span.SetAttributes(attribute.Int("reminders.sent", sent))
	return sent, nil
}

func (w *ReminderWorker) processOne(ctx context.Context, ra *scheduling.ReminderAppointment) error {
	if ra.PatientEmail == "" {
		// Nothing to send; flag it so the appointment stops coming back.
		return w.store.MarkReminderSent(ctx, ra.ID)
	}

	body := fmt.Sprintf("Reminder: your appointment %s with Dr. %s is tomorrow at %s.",
		ra.Code, ra.PhysicianName, ra.StartsAt.Format("15:04"))
	if ra.Room != "" {
		body += fmt.Sprintf(" Please come to room %s.", ra.Room)
	}

	err := w.sender.Send(ctx, EmailMessage{
		To:      ra.PatientEmail,
		ToName:  ra.PatientName,
		Subject: "Appointment reminder: " + ra.Code,
		Body:    body,
	})
	w.metrics.ObserveSend("reminder", err)
	if err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	if err := w.store.MarkReminderSent(ctx, ra.ID); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	w.logger.Info("reminder sent", "appointment_id", ra.ID, "to", ra.PatientEmail)
	return nil
}
