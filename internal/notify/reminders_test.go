package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicsuite/hospital-portal/internal/scheduling"
)

type fakeReminderStore struct {
	due    []scheduling.ReminderAppointment
	marked []uuid.UUID
}

func (f *fakeReminderStore) ListDueReminders(ctx context.Context, date time.Time, limit int) ([]scheduling.ReminderAppointment, error) {
	if limit < len(f.due) {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeReminderStore) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	f.marked = append(f.marked, id)
	return nil
}

type recordingSender struct {
	sent    []EmailMessage
	failFor string
}

func (s *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.failFor != "" && msg.To == s.failFor {
		return errors.New("smtp rejected")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func dueAppointment(email string) scheduling.ReminderAppointment {
	return scheduling.ReminderAppointment{
		ID:            uuid.New(),
		Code:          "APT-20250304-AB12",
		StartsAt:      time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC),
		Room:          "204",
		PatientName:   "Maria Lopez",
		PatientEmail:  email,
		PhysicianName: "Garcia",
	}
}

func TestProcessDueSendsAndMarks(t *testing.T) {
	first := dueAppointment("maria@example.com")
	second := dueAppointment("jose@example.com")
	store := &fakeReminderStore{due: []scheduling.ReminderAppointment{first, second}}
	sender := &recordingSender{}
	worker := NewReminderWorker(store, sender, nil, nil)

	sent, err := worker.ProcessDue(context.Background(), time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, sender.sent, 2)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, store.marked)
	assert.Contains(t, sender.sent[0].Body, "09:30")
	assert.Contains(t, sender.sent[0].Body, "room 204")
	assert.Contains(t, sender.sent[0].Body, "Dr. Garcia")
}

func TestProcessDueFailureDoesNotMarkOrAbort(t *testing.T) {
	failing := dueAppointment("bounce@example.com")
	ok := dueAppointment("maria@example.com")
	store := &fakeReminderStore{due: []scheduling.ReminderAppointment{failing, ok}}
	sender := &recordingSender{failFor: "bounce@example.com"}
	worker := NewReminderWorker(store, sender, nil, nil)

	sent, err := worker.ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	// The failed reminder stays unflagged so the next pass retries it.
	assert.Equal(t, []uuid.UUID{ok.ID}, store.marked)
}

func TestProcessDueNoEmailStillFlags(t *testing.T) {
	noEmail := dueAppointment("")
	store := &fakeReminderStore{due: []scheduling.ReminderAppointment{noEmail}}
	sender := &recordingSender{}
	worker := NewReminderWorker(store, sender, nil, nil)

	sent, err := worker.ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Empty(t, sender.sent)
	assert.Equal(t, []uuid.UUID{noEmail.ID}, store.marked)
}

func TestProcessDueEmpty(t *testing.T) {
	worker := NewReminderWorker(&fakeReminderStore{}, &recordingSender{}, nil, nil)
	sent, err := worker.ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestProcessDueRespectsBatchSize(t *testing.T) {
	store := &fakeReminderStore{}
	for i := 0; i < 5; i++ {
		store.due = append(store.due, dueAppointment("p@example.com"))
	}
	sender := &recordingSender{}
	worker := NewReminderWorker(store, sender, nil, nil).WithBatchSize(3)

	sent, err := worker.ProcessDue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
}
