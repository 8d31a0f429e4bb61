// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Shivanand-hulikatti/event-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-registration/internal/service"
	"github.com/go-chi/chi/v5"
)

// EventHandler holds the HTTP handlers for events and registrations.
type EventHandler struct {
	svc *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// UserHandler holds the HTTP handlers for users.
type UserHandler struct {
	svc *service.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, data any, msg string) {
	writeJSON(w, status, model.Response{Success: true, Data: data, Message: msg})
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.Response{Success: false, Message: msg})
}

// writeServiceError maps a service error to its status code. Internal errors
// only ever expose the service's generic message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var se *service.Error
	if !errors.As(err, &se) {
		writeFail(w, http.StatusInternalServerError, fallback)
		return
	}
	switch se.Kind {
	case service.KindValidation, service.KindConflict:
		writeFail(w, http.StatusBadRequest, se.Message)
	case service.KindNotFound:
		writeFail(w, http.StatusNotFound, se.Message)
	default:
		msg := se.Message
		if msg == "" {
			msg = fallback
		}
		writeFail(w, http.StatusInternalServerError, msg)
	}
}

// decodeJSON reads a JSON body of at most 1 MB. An empty body decodes to the
// zero value so that missing fields are reported by validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ─── Users ────────────────────────────────────────────────────────────────────

// RegisterUser handles POST /api/users/register
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.svc.RegisterUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "User registration failed")
		return
	}
	writeOK(w, http.StatusCreated, user, "User registered successfully")
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /api/events/create
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, model.Response{
		Success: true,
		Data:    event,
		EventID: &event.ID,
		Message: "Event created successfully",
	})
}

// ListEvents handles GET /api/events/
// Returns every event by date, each with its registrations.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to retrieve events")
		return
	}
	writeOK(w, http.StatusOK, events, "Events retrieved successfully")
}

// ListUpcoming handles GET /api/events/upcoming
func (h *EventHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListUpcoming(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to retrieve upcoming events")
		return
	}
	writeOK(w, http.StatusOK, events, "Upcoming events retrieved successfully")
}

// GetEvent handles GET /api/events/{eventId}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, err, "Failed to retrieve event")
		return
	}
	writeOK(w, http.StatusOK, event, "Event retrieved successfully")
}

// Register handles POST /api/events/register/{eventId}
// Performs a concurrency-safe registration for the specified event.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.AttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	summary, err := h.svc.Register(r.Context(), chi.URLParam(r, "eventId"), req.UserID)
	if err != nil {
		writeServiceError(w, err, "Failed to register for event")
		return
	}
	writeOK(w, http.StatusCreated, summary, "Registered for event successfully")
}

// Cancel handles POST /api/events/cancel/{eventId}
func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req model.AttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.Cancel(r.Context(), chi.URLParam(r, "eventId"), req.UserID); err != nil {
		writeServiceError(w, err, "Failed to cancel registration")
		return
	}
	writeOK(w, http.StatusOK, nil, "Registration cancelled successfully")
}

// Stats handles GET /api/events/stats/{eventId}
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, err, "Failed to retrieve event statistics")
		return
	}
	writeOK(w, http.StatusOK, stats, "Event statistics retrieved successfully")
}
