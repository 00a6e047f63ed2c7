package consultations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicsuite/hospital-portal/internal/scheduling"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, c *Consultation) error
	CreateForAppointment(ctx context.Context, c *Consultation, appointmentID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Consultation, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Consultation, error)
}

// Handler exposes consultations over HTTP.
type Handler struct {
	store  Store
	logger *logging.Logger
}

func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type consultationRequest struct {
	AppointmentID *uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	PhysicianID   uuid.UUID  `json:"physician_id"`
	Symptoms      string     `json:"symptoms"`
	Diagnosis     string     `json:"diagnosis"`
	Treatment     string     `json:"treatment"`
	Notes         string     `json:"notes"`
	WeightKg      float64    `json:"weight_kg"`
	HeightCm      float64    `json:"height_cm"`
	BloodPressure string     `json:"blood_pressure"`
	TemperatureC  float64    `json:"temperature_c"`
	HeartRate     int        `json:"heart_rate"`
}

// consultationResponse mirrors Consultation with the derived BMI.
type consultationResponse struct {
	*Consultation
	BMI float64 `json:"bmi,omitempty"`
}

func toResponse(c *Consultation) consultationResponse {
	return consultationResponse{Consultation: c, BMI: c.BMI()}
}

// Create handles POST /consultations. With an appointment_id the linked
// appointment is completed atomically with the insert.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req consultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientID == uuid.Nil || req.PhysicianID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "patient_id and physician_id are required")
		return
	}
	if req.Diagnosis == "" {
		writeError(w, http.StatusBadRequest, "diagnosis is required")
		return
	}

	c := &Consultation{
		PatientID:     req.PatientID,
		PhysicianID:   req.PhysicianID,
		Symptoms:      req.Symptoms,
		Diagnosis:     req.Diagnosis,
		Treatment:     req.Treatment,
		Notes:         req.Notes,
		WeightKg:      req.WeightKg,
		HeightCm:      req.HeightCm,
		BloodPressure: req.BloodPressure,
		TemperatureC:  req.TemperatureC,
		HeartRate:     req.HeartRate,
	}

	var err error
	if req.AppointmentID != nil {
		err = h.store.CreateForAppointment(r.Context(), c, *req.AppointmentID)
	} else {
		err = h.store.Create(r.Context(), c)
	}
	if err != nil {
		switch {
		case errors.Is(err, scheduling.ErrAppointmentNotFound):
			writeError(w, http.StatusNotFound, "appointment not found")
		case errors.Is(err, ErrAppointmentNotReady):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("consultation create failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(c))
}

// Get handles GET /consultations/{consultationID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "consultationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consultation id")
		return
	}
	c, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "consultation not found")
			return
		}
		h.logger.Error("consultation load failed", "error", err, "consultation_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(c))
}

// History handles GET /patients/{patientID}/consultations.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	list, err := h.store.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("consultation history failed", "error", err, "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consultations": list})
}
