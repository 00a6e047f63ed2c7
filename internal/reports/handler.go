package reports

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// Handler exposes reporting over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseRange reads from/to query params as inclusive calendar dates and
// returns a half-open [from, to+1d) window.
func parseRange(r *http.Request) (time.Time, time.Time, bool) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil || to.Before(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to.Add(24 * time.Hour), true
}

// Appointments handles GET /reports/appointments?from=&to=&physician_id=.
func (h *Handler) Appointments(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD with from <= to")
		return
	}
	physicianID := uuid.Nil
	if raw := r.URL.Query().Get("physician_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid physician_id")
			return
		}
		physicianID = id
	}
	report, err := h.svc.Appointments(r.Context(), from, to, physicianID)
	if err != nil {
		h.logger.Error("appointment report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Activity handles GET /reports/activity?from=&to=.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD with from <= to")
		return
	}
	report, err := h.svc.Activity(r.Context(), from, to)
	if err != nil {
		h.logger.Error("activity report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Consultations handles GET /reports/consultations?from=&to=.
func (h *Handler) Consultations(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD with from <= to")
		return
	}
	report, err := h.svc.Consultations(r.Context(), from, to)
	if err != nil {
		h.logger.Error("consultation report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Demographics handles GET /reports/demographics.
func (h *Handler) Demographics(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Demographics(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("demographics report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Labs handles GET /reports/labs?from=&to=.
func (h *Handler) Labs(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD with from <= to")
		return
	}
	report, err := h.svc.Labs(r.Context(), from, to)
	if err != nil {
		h.logger.Error("lab report failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
