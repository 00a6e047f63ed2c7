package labs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, o *LabOrder) error
	Get(ctx context.Context, id uuid.UUID) (*LabOrder, error)
	SetStatus(ctx context.Context, id uuid.UUID, to Status) (*LabOrder, error)
	RecordResults(ctx context.Context, id uuid.UUID, results []PanelResult) (*LabOrder, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]LabOrder, error)
	ListQueue(ctx context.Context) ([]LabOrder, error)
}

// Handler exposes the laboratory queue over HTTP.
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

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "lab order not found")
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("lab request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type orderRequest struct {
	PatientID      uuid.UUID  `json:"patient_id"`
	PhysicianID    uuid.UUID  `json:"physician_id"`
	ConsultationID *uuid.UUID `json:"consultation_id"`
	Priority       Priority   `json:"priority"`
	Notes          string     `json:"notes"`
	Panels         []struct {
		Name           string `json:"name"`
		Unit           string `json:"unit"`
		ReferenceRange string `json:"reference_range"`
	} `json:"panels"`
}

// Create handles POST /labs/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatientID == uuid.Nil || req.PhysicianID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "patient_id and physician_id are required")
		return
	}
	if len(req.Panels) == 0 {
		writeError(w, http.StatusBadRequest, "at least one panel is required")
		return
	}
	if req.Priority != "" && !req.Priority.Valid() {
		writeError(w, http.StatusBadRequest, "unknown priority")
		return
	}

	o := &LabOrder{
		PatientID:      req.PatientID,
		PhysicianID:    req.PhysicianID,
		ConsultationID: req.ConsultationID,
		Priority:       req.Priority,
		Notes:          req.Notes,
	}
	for _, p := range req.Panels {
		if p.Name == "" {
			writeError(w, http.StatusBadRequest, "panel name is required")
			return
		}
		o.Panels = append(o.Panels, Panel{Name: p.Name, Unit: p.Unit, ReferenceRange: p.ReferenceRange})
	}

	if err := h.store.Create(r.Context(), o); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// Get handles GET /labs/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// StartProcessing handles POST /labs/orders/{orderID}/start.
func (h *Handler) StartProcessing(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusInProcess)
}

// Cancel handles POST /labs/orders/{orderID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusCancelled)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, to Status) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.store.SetStatus(r.Context(), id, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// RecordResults handles POST /labs/orders/{orderID}/results.
func (h *Handler) RecordResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req struct {
		Results []PanelResult `json:"results"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Results) == 0 {
		writeError(w, http.StatusBadRequest, "at least one result is required")
		return
	}
	o, err := h.store.RecordResults(r.Context(), id, req.Results)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Queue handles GET /labs/queue.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListQueue(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// ByPatient handles GET /patients/{patientID}/labs.
func (h *Handler) ByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid patient id")
		return
	}
	orders, err := h.store.ListByPatient(r.Context(), patientID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}
