package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-registration/internal/capacity"
	"github.com/Shivanand-hulikatti/event-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-registration/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Client-facing messages.
const (
	msgAllFieldsRequired   = "All fields are required"
	msgCapacityPositive    = "Capacity must be a positive number"
	msgCapacityTooLarge    = "Capacity cannot exceed 1000"
	msgInvalidDate         = "Invalid date format"
	msgDateInPast          = "Event date cannot be in the past"
	msgEventIDRequired     = "Valid event ID is required"
	msgUserIDRequired      = "User ID is required"
	msgUserIDInvalid       = "Valid user ID is required"
	msgUserNotFound        = "User not found"
	msgEventNotFound       = "Event not found"
	msgAlreadyRegistered   = "User is already registered for this event"
	msgPastEvent           = "Cannot register for past events"
	msgEventFull           = "Event is fully booked"
	msgRegistrationMissing = "Registration not found"
)

// dateLayouts are tried in order. Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events        EventStore
	registrations RegistrationLedger
	logger        zerolog.Logger
	validate      *validator.Validate
	now           Clock
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, registrations RegistrationLedger, logger zerolog.Logger, opts ...Option) *EventService {
	o := buildOptions(opts)
	return &EventService{
		events:        events,
		registrations: registrations,
		logger:        logger.With().Str("component", "events").Logger(),
		validate:      newValidator(),
		now:           o.now,
	}
}

func (s *EventService) clock() time.Time {
	return s.now().UTC()
}

// CreateEvent validates the request and persists a new event. Checks run in
// a fixed order: required fields, capacity range, date format, date in the
// future. The first failure is returned.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	req.DateTime = strings.TrimSpace(req.DateTime)

	if err := s.validate.Struct(req); err != nil {
		return nil, validation(firstInvalidField(err), msgAllFieldsRequired)
	}
	if req.Capacity <= 0 {
		return nil, validation("capacity", msgCapacityPositive)
	}
	if req.Capacity > capacity.MaxCapacity {
		return nil, validation("capacity", msgCapacityTooLarge)
	}
	dateTime, ok := ParseDateTime(req.DateTime)
	if !ok {
		return nil, validation("dateTime", msgInvalidDate)
	}
	if !dateTime.After(s.clock()) {
		return nil, validation("dateTime", msgDateInPast)
	}

	event, err := s.events.Create(ctx, req.Title, dateTime, req.Location, req.Capacity)
	if err != nil {
		logFor(ctx, s.logger).Error().Err(err).Str("component", "events").Msg("create event failed")
		return nil, internal("Failed to create event", err)
	}
	metrics.EventsCreated.Inc()
	return event, nil
}

// ListEvents returns every event by date, each with its registrations.
func (s *EventService) ListEvents(ctx context.Context) ([]model.EventWithRegistrations, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		logFor(ctx, s.logger).Error().Err(err).Str("component", "events").Msg("list events failed")
		return nil, internal("Failed to retrieve events", err)
	}
	return events, nil
}

// ListUpcoming returns events that have not started, by date then location.
func (s *EventService) ListUpcoming(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.ListUpcoming(ctx, s.clock())
	if err != nil {
		logFor(ctx, s.logger).Error().Err(err).Str("component", "events").Msg("list upcoming events failed")
		return nil, internal("Failed to retrieve upcoming events", err)
	}
	return events, nil
}

// GetEvent returns a single event with its registrations.
func (s *EventService) GetEvent(ctx context.Context, rawID string) (*model.EventWithRegistrations, error) {
	id, err := model.ParseID(rawID)
	if err != nil {
		return nil, validation("eventId", msgEventIDRequired)
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(msgEventNotFound, err)
		}
		logFor(ctx, s.logger).Error().Err(err).Str("component", "events").Msg("get event failed")
		return nil, internal("Failed to retrieve event", err)
	}
	regs, err := s.registrations.ListByEvent(ctx, id)
	if err != nil {
		logFor(ctx, s.logger).Error().Err(err).Str("component", "events").Msg("list registrations failed")
		return nil, internal("Failed to retrieve event", err)
	}
	return &model.EventWithRegistrations{Event: *event, Registrations: regs}, nil
}

// Register validates identifiers and delegates the atomic, capacity-checked
// insert to the registration ledger.
func (s *EventService) Register(ctx context.Context, rawEventID string, userID model.ID) (summary *model.RegistrationSummary, err error) {
	defer func() { metrics.RegistrationAttempts.WithLabelValues(registrationOutcome(err)).Inc() }()

	eventID, uid, verr := parseAttendance(rawEventID, userID)
	if verr != nil {
		return nil, verr
	}

	summary, err = s.registrations.Register(ctx, eventID, uid, s.clock())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, notFound(msgUserNotFound, err)
		case errors.Is(err, repository.ErrAlreadyRegistered):
			return nil, conflict(msgAlreadyRegistered, err)
		case errors.Is(err, repository.ErrEventNotFound):
			return nil, notFound(msgEventNotFound, err)
		case errors.Is(err, repository.ErrEventPast):
			return nil, &Error{Kind: KindValidation, Field: "dateTime", Message: msgPastEvent, Err: err}
		case errors.Is(err, repository.ErrEventFull):
			return nil, conflict(msgEventFull, err)
		}
		logFor(ctx, s.logger).Error().Err(err).Str("component", "events").
			Int64("event_id", eventID).Int64("user_id", uid).Msg("register failed")
		return nil, internal("Failed to register for event", err)
	}

	logFor(ctx, s.logger).Debug().Str("component", "events").
		Int64("event_id", eventID).Int64("user_id", uid).Int64("registration_id", summary.RegistrationID).
		Msg("registered")
	return summary, nil
}

// Cancel removes the user's registration for the event.
func (s *EventService) Cancel(ctx context.Context, rawEventID string, userID model.ID) (err error) {
	defer func() { metrics.Cancellations.WithLabelValues(cancelOutcome(err)).Inc() }()

	eventID, uid, verr := parseAttendance(rawEventID, userID)
	if verr != nil {
		return verr
	}

	if err = s.registrations.Cancel(ctx, eventID, uid); err != nil {
		if errors.Is(err, repository.ErrRegistrationNotFound) {
			return notFound(msgRegistrationMissing, err)
		}
		logFor(ctx, s.logger).Error().Err(err).Str("component", "events").
			Int64("event_id", eventID).Int64("user_id", uid).Msg("cancel failed")
		return internal("Failed to cancel registration", err)
	}
	return nil
}

// Stats reports how much of the event's capacity is used.
func (s *EventService) Stats(ctx context.Context, rawEventID string) (*model.Stats, error) {
	eventID, err := model.ParseID(rawEventID)
	if err != nil {
		return nil, validation("eventId", msgEventIDRequired)
	}
	usage, err := s.registrations.Usage(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(msgEventNotFound, err)
		}
		logFor(ctx, s.logger).Error().Err(err).Str("component", "events").Int64("event_id", eventID).Msg("stats failed")
		return nil, internal("Failed to retrieve event statistics", err)
	}
	stats := ComputeStats(usage.Capacity, usage.Taken)
	return &stats, nil
}

// ComputeStats derives the stats for an event. capacity must be at least 1.
// The percentage has exactly two decimals, rounded half away from zero.
func ComputeStats(eventCapacity, taken int) model.Stats {
	pct := decimal.NewFromInt(int64(taken)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(eventCapacity)))
	return model.Stats{
		TotalRegistrations:       taken,
		RemainingCapacity:        capacity.Remaining(eventCapacity, taken),
		PercentageOfCapacityUsed: pct.StringFixed(2),
	}
}

// ParseDateTime parses the accepted event date formats and returns the
// instant in UTC.
func ParseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseAttendance(rawEventID string, userID model.ID) (int64, int64, *Error) {
	eventID, err := model.ParseID(rawEventID)
	if err != nil {
		return 0, 0, validation("eventId", msgEventIDRequired)
	}
	if userID.Invalid {
		return 0, 0, validation("userId", msgUserIDInvalid)
	}
	if !userID.Present() {
		return 0, 0, validation("userId", msgUserIDRequired)
	}
	return eventID, userID.Value, nil
}

func registrationOutcome(err error) string {
	if err == nil {
		return "success"
	}
	var se *Error
	if errors.As(err, &se) {
		switch se.Message {
		case msgEventFull:
			return "full"
		case msgAlreadyRegistered:
			return "duplicate"
		case msgPastEvent:
			return "past_event"
		}
	}
	switch KindOf(err) {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "invalid"
	}
	return "error"
}

func cancelOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case KindOf(err) == KindNotFound:
		return "not_found"
	case KindOf(err) == KindValidation:
		return "invalid"
	}
	return "error"
}
