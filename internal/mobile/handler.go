package mobile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicsuite/hospital-portal/internal/consultations"
	"github.com/clinicsuite/hospital-portal/internal/http/middleware"
	"github.com/clinicsuite/hospital-portal/internal/labs"
	"github.com/clinicsuite/hospital-portal/internal/patients"
	"github.com/clinicsuite/hospital-portal/internal/scheduling"
	"github.com/clinicsuite/hospital-portal/internal/users"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// ScheduleSource supplies a physician's daily agenda.
type ScheduleSource interface {
	DaySchedule(ctx context.Context, physicianID uuid.UUID, date time.Time) ([]scheduling.Appointment, error)
}

// PatientSource supplies patient records.
type PatientSource interface {
	Get(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
}

// HistorySource supplies a patient's consultation history.
type HistorySource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]consultations.Consultation, error)
}

// LabSource supplies a patient's lab orders.
type LabSource interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]labs.LabOrder, error)
}

// ConsultationWriter records consultations from the field.
type ConsultationWriter interface {
	Create(ctx context.Context, c *consultations.Consultation) error
	CreateForAppointment(ctx context.Context, c *consultations.Consultation, appointmentID uuid.UUID) error
}

// Handler is the JSON API consumed by the physicians' mobile app.
type Handler struct {
	auth     *users.Authenticator
	schedule ScheduleSource
	patients PatientSource
	history  HistorySource
	labs     LabSource
	consults ConsultationWriter
	logger   *logging.Logger
}

func NewHandler(auth *users.Authenticator, schedule ScheduleSource, patientSource PatientSource,
	history HistorySource, labSource LabSource, consults ConsultationWriter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		auth:     auth,
		schedule: schedule,
		patients: patientSource,
		history:  history,
		labs:     labSource,
		consults: consults,
		logger:   logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Login handles POST /api/mobile/login. Only physicians may use the app.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, u, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("mobile login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if u.Role != users.RolePhysician {
		writeError(w, http.StatusForbidden, "mobile access is limited to physicians")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"physician": map[string]any{
			"id":        u.ID,
			"name":      u.FullName(),
			"specialty": u.Specialty,
		},
	})
}

// Agenda handles GET /api/mobile/agenda?date=. It lists the authenticated
// physician's appointments; date defaults to today.
func (h *Handler) Agenda(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	appts, err := h.schedule.DaySchedule(r.Context(), claims.UserID, date)
	if err != nil {
		h.logger.Error("mobile agenda failed", "error", err, "physician_id", claims.UserID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type entry struct {
		ID       uuid.UUID         `json:"id"`
		Code     string            `json:"code"`
		Time     string            `json:"time"`
		Duration int               `json:"duration_minutes"`
		Kind     scheduling.Kind   `json:"kind"`
		Status   scheduling.Status `json:"status"`
		Room     string            `json:"room,omitempty"`
		Patient  uuid.UUID         `json:"patient_id"`
		Reason   string            `json:"reason,omitempty"`
	}
	out := make([]entry, 0, len(appts))
	for _, a := range appts {
		out = append(out, entry{
			ID:       a.ID,
			Code:     a.Code,
			Time:     a.StartsAt.UTC().Format("15:04"),
			Duration: a.DurationMinutes,
			Kind:     a.Kind,
			Status:   a.Status,
			Room:     a.Room,
			Patient:  a.PatientID,
			Reason:   a.Reason,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":         date.Format("2006-01-02"),
		"appointments": out,
	})
}

// PatientSummary handles GET /api/mobile/patients/{patientID}. It returns
// the record plus the most recent consultations.
func (h *Handler) PatientSummary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	p, err := h.patients.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.logger.Error("mobile patient load failed", "error", err, "patient_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	history, err := h.history.ListByPatient(r.Context(), id)
	if err != nil {
		h.logger.Error("mobile history load failed", "error", err, "patient_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(history) > 5 {
		history = history[:5]
	}
	orders, err := h.labs.ListByPatient(r.Context(), id)
	if err != nil {
		h.logger.Error("mobile lab orders load failed", "error", err, "patient_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	pending := make([]labs.LabOrder, 0, len(orders))
	for _, o := range orders {
		if o.Status == labs.StatusPending || o.Status == labs.StatusInProcess {
			pending = append(pending, o)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patient":              p,
		"age":                  p.Age(time.Now()),
		"recent_consultations": history,
		"pending_lab_orders":   pending,
	})
}

// NewConsultation handles POST /api/mobile/consultations. The physician id
// comes from the token, never the body.
func (h *Handler) NewConsultation(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return
	}

	var req struct {
		AppointmentID *uuid.UUID `json:"appointment_id"`
		PatientID     uuid.UUID  `json:"patient_id"`
		Symptoms      string     `json:"symptoms"`
		Diagnosis     string     `json:"diagnosis"`
		Treatment     string     `json:"treatment"`
		Notes         string     `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientID == uuid.Nil || req.Diagnosis == "" {
		writeError(w, http.StatusBadRequest, "patient_id and diagnosis are required")
		return
	}

	c := &consultations.Consultation{
		PatientID:   req.PatientID,
		PhysicianID: claims.UserID,
		Symptoms:    req.Symptoms,
		Diagnosis:   req.Diagnosis,
		Treatment:   req.Treatment,
		Notes:       req.Notes,
	}

	var err error
	if req.AppointmentID != nil {
		err = h.consults.CreateForAppointment(r.Context(), c, *req.AppointmentID)
	} else {
		err = h.consults.Create(r.Context(), c)
	}
	if err != nil {
		switch {
		case errors.Is(err, scheduling.ErrAppointmentNotFound):
			writeError(w, http.StatusNotFound, "appointment not found")
		case errors.Is(err, consultations.ErrAppointmentNotReady):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Error("mobile consultation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
