package scheduling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicsuite/hospital-portal/internal/http/middleware"
)

const testSecret = "test-secret"

func newTestRouter(store Store) http.Handler {
	svc := NewService(store, nil, nil, nil, nil)
	h := NewHandler(svc, nil)

	r := chi.NewRouter()
	r.Use(middleware.Auth(testSecret))
	r.Post("/templates", h.CreateTemplate)
	r.Get("/templates", h.ListTemplates)
	r.Put("/templates/{templateID}", h.UpdateTemplate)
	r.Get("/physicians/{physicianID}/availability", h.Availability)
	r.Get("/physicians/{physicianID}/appointments", h.DaySchedule)
	r.Post("/appointments", h.Book)
	r.Get("/appointments/calendar", h.Calendar)
	r.Get("/appointments/{appointmentID}", h.Get)
	r.Post("/appointments/{appointmentID}/confirm", h.Confirm)
	r.Post("/appointments/{appointmentID}/cancel", h.Cancel)
	return r
}

func bearerFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
		Role:   role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRequiresAuth(t *testing.T) {
	router := newTestRouter(newFakeStore())
	req := httptest.NewRequest(http.MethodGet, "/templates", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerCreateTemplate(t *testing.T) {
	router := newTestRouter(newFakeStore())
	token := bearerFor(t, uuid.New(), "admin")

	rec := doJSON(t, router, http.MethodPost, "/templates", token, map[string]any{
		"physician_id": uuid.New(),
		"day_of_week":  1,
		"start":        "08:00",
		"end":          "12:00",
		"slot_minutes": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID    uuid.UUID `json:"id"`
		Start string    `json:"start"`
		End   string    `json:"end"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, "08:00", resp.Start)
	assert.Equal(t, "12:00", resp.End)
}

func TestHandlerCreateTemplateRejectsBadClock(t *testing.T) {
	router := newTestRouter(newFakeStore())
	token := bearerFor(t, uuid.New(), "admin")

	rec := doJSON(t, router, http.MethodPost, "/templates", token, map[string]any{
		"physician_id": uuid.New(),
		"day_of_week":  1,
		"start":        "25:00",
		"end":          "12:00",
		"slot_minutes": 30,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAvailability(t *testing.T) {
	store := newFakeStore()
	physician := uuid.New()
	store.template = &ScheduleTemplate{
		ID:          uuid.New(),
		PhysicianID: physician,
		DayOfWeek:   1,
		StartMinute: 480,
		EndMinute:   600,
		SlotMinutes: 30,
		Active:      true,
	}
	router := newTestRouter(store)
	token := bearerFor(t, uuid.New(), "reception")

	path := fmt.Sprintf("/physicians/%s/availability?date=2025-03-03", physician)
	rec := doJSON(t, router, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Schedule struct {
			Start       string `json:"start"`
			End         string `json:"end"`
			SlotMinutes int    `json:"slot_minutes"`
		} `json:"schedule"`
		AvailableSlots []string `json:"available_slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "08:00", resp.Schedule.Start)
	assert.Equal(t, "10:00", resp.Schedule.End)
	assert.Equal(t, 30, resp.Schedule.SlotMinutes)
	assert.Equal(t, []string{"08:00", "08:30", "09:00", "09:30"}, resp.AvailableSlots)
}

func TestHandlerAvailabilityNoTemplate(t *testing.T) {
	router := newTestRouter(newFakeStore())
	token := bearerFor(t, uuid.New(), "reception")

	path := fmt.Sprintf("/physicians/%s/availability?date=2025-03-03", uuid.New())
	rec := doJSON(t, router, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Schedule       any      `json:"schedule"`
		AvailableSlots []string `json:"available_slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Schedule)
	assert.Empty(t, resp.AvailableSlots)
}

func TestHandlerBookConflict(t *testing.T) {
	store := newFakeStore()
	store.bookErr = ErrSlotConflict
	router := newTestRouter(store)
	token := bearerFor(t, uuid.New(), "reception")

	rec := doJSON(t, router, http.MethodPost, "/appointments", token, map[string]any{
		"patient_id":       uuid.New(),
		"physician_id":     uuid.New(),
		"starts_at":        "2025-03-03T08:30:00Z",
		"duration_minutes": 30,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerTransitionFlow(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	physician := uuid.New()
	token := bearerFor(t, physician, "physician")

	rec := doJSON(t, router, http.MethodPost, "/appointments", token, map[string]any{
		"patient_id":       uuid.New(),
		"physician_id":     physician,
		"starts_at":        "2025-03-03T08:30:00Z",
		"duration_minutes": 30,
		"kind":             "general",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var booked appointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booked))
	assert.Equal(t, StatusScheduled, booked.Status)

	// Another physician may not confirm it.
	otherToken := bearerFor(t, uuid.New(), "physician")
	rec = doJSON(t, router, http.MethodPost, "/appointments/"+booked.ID.String()+"/confirm", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/appointments/"+booked.ID.String()+"/confirm", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Confirmed appointments cannot be marked no-show.
	store.appts[booked.ID].Status = StatusCompleted
	rec = doJSON(t, router, http.MethodPost, "/appointments/"+booked.ID.String()+"/cancel", token,
		map[string]any{"reason": "late"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerCancelRecordsReason(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	physician := uuid.New()
	token := bearerFor(t, physician, "physician")

	rec := doJSON(t, router, http.MethodPost, "/appointments", token, map[string]any{
		"patient_id":       uuid.New(),
		"physician_id":     physician,
		"starts_at":        "2025-03-03T08:30:00Z",
		"duration_minutes": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var booked appointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booked))

	rec = doJSON(t, router, http.MethodPost, "/appointments/"+booked.ID.String()+"/cancel", token,
		map[string]any{"reason": "patient request"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cancelled appointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "patient request", cancelled.CancelReason)
}

func TestHandlerGetNotFound(t *testing.T) {
	router := newTestRouter(newFakeStore())
	token := bearerFor(t, uuid.New(), "admin")
	rec := doJSON(t, router, http.MethodGet, "/appointments/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
