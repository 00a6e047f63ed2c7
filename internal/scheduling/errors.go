package scheduling

import "errors"

var (
	// ErrTemplateExists is returned when a physician already has an active
	// template for the requested weekday.
	ErrTemplateExists = errors.New("active schedule template already exists for this physician and weekday")

	// ErrTemplateNotFound is returned when no template matches the lookup.
	ErrTemplateNotFound = errors.New("schedule template not found")

	// ErrAppointmentNotFound is returned when an appointment id does not exist.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotConflict is returned when a booking overlaps an active appointment
	// for the same physician.
	ErrSlotConflict = errors.New("physician already has an appointment in this time slot")

	// ErrInvalidTransition is returned for a state change the appointment
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid appointment state transition")

	// ErrForbidden is returned when the caller may not act on the appointment.
	ErrForbidden = errors.New("not allowed to modify this appointment")
)
