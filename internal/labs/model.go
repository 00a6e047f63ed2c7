package labs

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("labs: lab order not found")
	ErrInvalidTransition = errors.New("labs: invalid status change")
	ErrNoPanels          = errors.New("labs: order needs at least one panel")
)

// Priority orders the lab queue.
type Priority string

const (
	PriorityRoutine Priority = "routine"
	PriorityUrgent  Priority = "urgent"
	PriorityStat    Priority = "stat"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityStat:
		return true
	}
	return false
}

// Status is a lab order's processing state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInProcess Status = "in_process"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusInProcess, StatusCancelled},
	StatusInProcess: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a lab order may move from one state to
// another. Completed and cancelled orders are final.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LabOrder is a physician's request for laboratory work.
type LabOrder struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	PatientID      uuid.UUID  `json:"patient_id"`
	PhysicianID    uuid.UUID  `json:"physician_id"`
	ConsultationID *uuid.UUID `json:"consultation_id,omitempty"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	RequestedAt    time.Time  `json:"requested_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Panels         []Panel    `json:"panels,omitempty"`
}

// Panel is one test within an order. Result stays empty until the lab
// records it.
type Panel struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	Name           string    `json:"name"`
	Result         string    `json:"result,omitempty"`
	Unit           string    `json:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	Flag           string    `json:"flag,omitempty"`
}
