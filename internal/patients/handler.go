package patients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	Search(ctx context.Context, query string, limit int) ([]Patient, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Handler exposes the patient registry over HTTP.
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

type patientRequest struct {
	NationalID       string `json:"national_id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	BirthDate        string `json:"birth_date"`
	Sex              string `json:"sex"`
	BloodType        string `json:"blood_type"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	Allergies        string `json:"allergies"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`
}

func (req patientRequest) toPatient() (*Patient, error) {
	if req.NationalID == "" {
		return nil, errors.New("national_id is required")
	}
	if req.FirstName == "" || req.LastName == "" {
		return nil, errors.New("first_name and last_name are required")
	}
	birth, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return nil, errors.New("birth_date must be YYYY-MM-DD")
	}
	if birth.After(time.Now()) {
		return nil, errors.New("birth_date must be in the past")
	}
	return &Patient{
		NationalID:       req.NationalID,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		BirthDate:        birth,
		Sex:              req.Sex,
		BloodType:        req.BloodType,
		Phone:            req.Phone,
		Email:            req.Email,
		Address:          req.Address,
		Allergies:        req.Allergies,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
		Active:           true,
	}, nil
}

type patientResponse struct {
	Patient
	Age int `json:"age"`
}

func toResponse(p *Patient) patientResponse {
	return patientResponse{Patient: *p, Age: p.Age(time.Now())}
}

// Create handles POST /patients.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := req.toPatient()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Create(r.Context(), p); err != nil {
		if errors.Is(err, ErrNationalIDExists) {
			writeError(w, http.StatusConflict, "national id already registered")
			return
		}
		h.logger.Error("patient create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(p))
}

// Update handles PUT /patients/{patientID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := req.toPatient()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = id
	if err := h.store.Update(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "patient not found")
		case errors.Is(err, ErrNationalIDExists):
			writeError(w, http.StatusConflict, "national id already registered")
		default:
			h.logger.Error("patient update failed", "error", err, "patient_id", id)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}

// Get handles GET /patients/{patientID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.logger.Error("patient load failed", "error", err, "patient_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(p))
}

// Search handles GET /patients?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	results, err := h.store.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.logger.Error("patient search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]patientResponse, 0, len(results))
	for i := range results {
		out = append(out, toResponse(&results[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": out})
}

// Deactivate handles DELETE /patients/{patientID}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	if err := h.store.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.logger.Error("patient deactivate failed", "error", err, "patient_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
