package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicsuite/hospital-portal/internal/http/middleware"
	"github.com/clinicsuite/hospital-portal/pkg/logging"
)

// Handler exposes the schedule registry and appointment ledger over HTTP.
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

// writeDomainError maps ledger errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTemplateNotFound), errors.Is(err, ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTemplateExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrSlotConflict):
		writeError(w, http.StatusConflict, "requested slot is no longer available")
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed to manage this appointment")
	default:
		h.logger.Error("scheduling request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func actorFrom(r *http.Request) Actor {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	return Actor{ID: claims.UserID, Role: claims.Role}
}

type templateRequest struct {
	PhysicianID uuid.UUID `json:"physician_id"`
	DayOfWeek   int       `json:"day_of_week"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	SlotMinutes int       `json:"slot_minutes"`
	MaxPerDay   int       `json:"max_per_day"`
	Active      *bool     `json:"active"`
}

type templateResponse struct {
	ID          uuid.UUID `json:"id"`
	PhysicianID uuid.UUID `json:"physician_id"`
	DayOfWeek   int       `json:"day_of_week"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	SlotMinutes int       `json:"slot_minutes"`
	MaxPerDay   int       `json:"max_per_day"`
	Active      bool      `json:"active"`
}

func templateToResponse(t *ScheduleTemplate) templateResponse {
	return templateResponse{
		ID:          t.ID,
		PhysicianID: t.PhysicianID,
		DayOfWeek:   t.DayOfWeek,
		Start:       t.StartMinute.Clock(),
		End:         t.EndMinute.Clock(),
		SlotMinutes: t.SlotMinutes,
		MaxPerDay:   t.MaxPerDay,
		Active:      t.Active,
	}
}

func (req templateRequest) toTemplate() (*ScheduleTemplate, error) {
	start, err := ParseClock(req.Start)
	if err != nil {
		return nil, err
	}
	end, err := ParseClock(req.End)
	if err != nil {
		return nil, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &ScheduleTemplate{
		PhysicianID: req.PhysicianID,
		DayOfWeek:   req.DayOfWeek,
		StartMinute: start,
		EndMinute:   end,
		SlotMinutes: req.SlotMinutes,
		MaxPerDay:   req.MaxPerDay,
		Active:      active,
	}, nil
}

// CreateTemplate handles POST /templates.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tpl, err := req.toTemplate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.CreateTemplate(r.Context(), tpl); err != nil {
		if errors.Is(err, ErrTemplateExists) {
			h.writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, templateToResponse(tpl))
}

// UpdateTemplate handles PUT /templates/{templateID}.
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tpl, err := req.toTemplate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl.ID = id
	if err := h.svc.UpdateTemplate(r.Context(), tpl); err != nil {
		switch {
		case errors.Is(err, ErrTemplateNotFound), errors.Is(err, ErrTemplateExists):
			h.writeDomainError(w, err)
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, templateToResponse(tpl))
}

// ListTemplates handles GET /templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	physicianID := uuid.Nil
	if raw := r.URL.Query().Get("physician_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid physician_id")
			return
		}
		physicianID = id
	}
	templates, err := h.svc.ListTemplates(r.Context(), physicianID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, templateToResponse(&templates[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

// Availability handles GET /physicians/{physicianID}/availability?date=YYYY-MM-DD.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	physicianID, err := uuid.Parse(chi.URLParam(r, "physicianID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid physician id")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	avail, err := h.svc.AvailableSlots(r.Context(), physicianID, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if avail.Template == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"schedule":        nil,
			"available_slots": []string{},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schedule": map[string]any{
			"start":        avail.Template.StartMinute.Clock(),
			"end":          avail.Template.EndMinute.Clock(),
			"slot_minutes": avail.Template.SlotMinutes,
		},
		"available_slots": ClockStrings(avail.Slots),
	})
}

type bookRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	PhysicianID     uuid.UUID `json:"physician_id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Kind            Kind      `json:"kind"`
	Room            string    `json:"room"`
	Reason          string    `json:"reason"`
}

type appointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	PatientID       uuid.UUID  `json:"patient_id"`
	PhysicianID     uuid.UUID  `json:"physician_id"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Kind            Kind       `json:"kind"`
	Status          Status     `json:"status"`
	Room            string     `json:"room,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func appointmentToResponse(a *Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		Code:            a.Code,
		PatientID:       a.PatientID,
		PhysicianID:     a.PhysicianID,
		StartsAt:        a.StartsAt,
		EndsAt:          a.EndsAt(),
		DurationMinutes: a.DurationMinutes,
		Kind:            a.Kind,
		Status:          a.Status,
		Room:            a.Room,
		Reason:          a.Reason,
		CancelReason:    a.CancelReason,
		CancelledAt:     a.CancelledAt,
		CreatedAt:       a.CreatedAt,
	}
}

// Book handles POST /appointments.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		req.Kind = KindGeneral
	}
	actor := actorFrom(r)
	a, err := h.svc.Book(r.Context(), BookRequest{
		PatientID:       req.PatientID,
		PhysicianID:     req.PhysicianID,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		Kind:            req.Kind,
		Room:            req.Room,
		Reason:          req.Reason,
		CreatedBy:       actor.ID,
	})
	if err != nil {
		if errors.Is(err, ErrSlotConflict) {
			h.writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, appointmentToResponse(a))
}

// Get handles GET /appointments/{appointmentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToResponse(a))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	do func(id uuid.UUID, actor Actor) (*Appointment, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	a, err := do(id, actorFrom(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToResponse(a))
}

// Confirm handles POST /appointments/{appointmentID}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor Actor) (*Appointment, error) {
		return h.svc.Confirm(r.Context(), id, actor)
	})
}

// Start handles POST /appointments/{appointmentID}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor Actor) (*Appointment, error) {
		return h.svc.Start(r.Context(), id, actor)
	})
}

// Complete handles POST /appointments/{appointmentID}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor Actor) (*Appointment, error) {
		return h.svc.Complete(r.Context(), id, actor)
	})
}

// MarkNoShow handles POST /appointments/{appointmentID}/no-show.
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor Actor) (*Appointment, error) {
		return h.svc.MarkNoShow(r.Context(), id, actor)
	})
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	// An empty body is a cancellation with no reason.
	_ = json.NewDecoder(r.Body).Decode(&body)
	h.transition(w, r, func(id uuid.UUID, actor Actor) (*Appointment, error) {
		return h.svc.Cancel(r.Context(), id, actor, body.Reason)
	})
}

// DaySchedule handles GET /physicians/{physicianID}/appointments?date=YYYY-MM-DD.
func (h *Handler) DaySchedule(w http.ResponseWriter, r *http.Request) {
	physicianID, err := uuid.Parse(chi.URLParam(r, "physicianID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid physician id")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	appts, err := h.svc.DaySchedule(r.Context(), physicianID, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, appointmentToResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

// calendarEvent matches the shape the portal's calendar widget consumes.
type calendarEvent struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Color     string    `json:"color"`
	Status    Status    `json:"status"`
	Code      string    `json:"code"`
	Room      string    `json:"room,omitempty"`
	Patient   string    `json:"patient"`
	Physician string    `json:"physician"`
}

// Calendar handles GET /appointments/calendar?from=&to=&physician_id=.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	physicianID := uuid.Nil
	if raw := r.URL.Query().Get("physician_id"); raw != "" {
		physicianID, err = uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid physician_id")
			return
		}
	}

	appts, err := h.svc.CalendarEvents(r.Context(), from, to.Add(24*time.Hour), physicianID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events := make([]calendarEvent, 0, len(appts))
	for _, a := range appts {
		events = append(events, calendarEvent{
			ID:        a.ID,
			Title:     a.PatientName + " / " + a.PhysicianName,
			Start:     a.StartsAt,
			End:       a.EndsAt(),
			Color:     a.Status.Color(),
			Status:    a.Status,
			Code:      a.Code,
			Room:      a.Room,
			Patient:   a.PatientName,
			Physician: a.PhysicianName,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
