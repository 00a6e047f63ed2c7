package scheduling

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// ActiveStatuses are the states that reserve a physician's time slot.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed}

// transitions is the full state machine. Cancel is special-cased in
// CanTransition: it is allowed from every non-terminal state.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCompleted, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted},
}

// Terminal reports whether no further transition leaves the state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the state reserves a time interval.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Calendar colors keyed by state, carried over for the calendar feed.
var statusColors = map[Status]string{
	StatusScheduled:  "#17a2b8",
	StatusConfirmed:  "#28a745",
	StatusInProgress: "#ffc107",
	StatusCompleted:  "#6c757d",
	StatusCancelled:  "#dc3545",
	StatusNoShow:     "#343a40",
}

// Color returns the calendar color for the state.
func (s Status) Color() string {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return "#6c757d"
}

// Kind is the consultation type booked for the appointment.
type Kind string

const (
	KindGeneral   Kind = "general"
	KindFollowUp  Kind = "follow_up"
	KindSpecialty Kind = "specialty"
	KindEmergency Kind = "emergency"
	KindLab       Kind = "laboratory"
)

// Valid reports whether k is a known consultation kind.
func (k Kind) Valid() bool {
	switch k {
	case KindGeneral, KindFollowUp, KindSpecialty, KindEmergency, KindLab:
		return true
	}
	return false
}

// ScheduleTemplate is a physician's weekly working window for one weekday.
// DayOfWeek is ISO: 1=Monday .. 7=Sunday.
type ScheduleTemplate struct {
	ID          uuid.UUID   `json:"id"`
	PhysicianID uuid.UUID   `json:"physician_id"`
	DayOfWeek   int         `json:"day_of_week"`
	StartMinute MinuteOfDay `json:"-"`
	EndMinute   MinuteOfDay `json:"-"`
	SlotMinutes int         `json:"slot_minutes"`
	MaxPerDay   int         `json:"max_per_day"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Appointment is one booked entry in the ledger.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	PatientID       uuid.UUID  `json:"patient_id"`
	PhysicianID     uuid.UUID  `json:"physician_id"`
	StartsAt        time.Time  `json:"starts_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Kind            Kind       `json:"kind"`
	Status          Status     `json:"status"`
	Room            string     `json:"room,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy     *uuid.UUID `json:"cancelled_by,omitempty"`
	ReminderSent    bool       `json:"reminder_sent"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// EndsAt is the exclusive end of the reserved interval.
func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// NewCode builds a human-readable appointment code, e.g. APT-20250131-3F2A.
func NewCode(prefix string, at time.Time) string {
	buf := make([]byte, 2)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
