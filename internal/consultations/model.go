package consultations

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("consultations: consultation not found")
	ErrAppointmentNotReady = errors.New("consultations: appointment is not in progress")
)

// Consultation is the clinical record written when a physician sees a
// patient. AppointmentID is nil for walk-in consultations.
type Consultation struct {
	ID            uuid.UUID  `json:"id"`
	Code          string     `json:"code"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	PatientID     uuid.UUID  `json:"patient_id"`
	PhysicianID   uuid.UUID  `json:"physician_id"`
	Symptoms      string     `json:"symptoms"`
	Diagnosis     string     `json:"diagnosis"`
	Treatment     string     `json:"treatment"`
	Notes         string     `json:"notes,omitempty"`
	WeightKg      float64    `json:"weight_kg,omitempty"`
	HeightCm      float64    `json:"height_cm,omitempty"`
	BloodPressure string     `json:"blood_pressure,omitempty"`
	TemperatureC  float64    `json:"temperature_c,omitempty"`
	HeartRate     int        `json:"heart_rate,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// BMI derives body mass index from the recorded vitals, rounded to one
// decimal. Returns 0 when weight or height is missing.
func (c *Consultation) BMI() float64 {
	if c.WeightKg <= 0 || c.HeightCm <= 0 {
		return 0
	}
	m := c.HeightCm / 100
	return math.Round(c.WeightKg/(m*m)*10) / 10
}
