package backup

import (
	"encoding/json"
	"net/http"

	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// Handler exposes backup administration over HTTP.
type Handler struct {
	manager *Manager
	logger  *logging.Logger
}

func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Run handles POST /admin/backups; it runs a backup immediately.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	path, err := h.manager.Run(r.Context())
	if err != nil {
		h.logger.Error("manual backup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup failed"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"archive": path})
}

// List handles GET /admin/backups.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	archives, err := h.manager.List()
	if err != nil {
		h.logger.Error("backup list failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": archives})
}

// Prune handles POST /admin/backups/prune; it deletes archives past the
// retention window.
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	removed, err := h.manager.Prune()
	if err != nil {
		h.logger.Error("backup prune failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
