package patients

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("patients: patient not found")
	ErrNationalIDExists = errors.New("patients: national id already registered")
)

// Patient is a person registered with the portal's medical record system.
type Patient struct {
	ID               uuid.UUID `json:"id"`
	NationalID       string    `json:"national_id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	BirthDate        time.Time `json:"birth_date"`
	Sex              string    `json:"sex"`
	BloodType        string    `json:"blood_type,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Email            string    `json:"email,omitempty"`
	Address          string    `json:"address,omitempty"`
	Allergies        string    `json:"allergies,omitempty"`
	EmergencyContact string    `json:"emergency_contact,omitempty"`
	EmergencyPhone   string    `json:"emergency_phone,omitempty"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age returns the patient's age in completed years as of now.
func (p *Patient) Age(now time.Time) int {
	years := now.Year() - p.BirthDate.Year()
	// Not yet had this year's birthday.
	if now.Month() < p.BirthDate.Month() ||
		(now.Month() == p.BirthDate.Month() && now.Day() < p.BirthDate.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
