// Package service implements business rules, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-registration/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// EventStore is the persistence the event service needs for events.
type EventStore interface {
	Create(ctx context.Context, title string, dateTime time.Time, location string, capacity int) (*model.Event, error)
	List(ctx context.Context) ([]model.EventWithRegistrations, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]model.Event, error)
	GetByID(ctx context.Context, id int64) (*model.Event, error)
}

// RegistrationLedger is the persistence the event service needs for
// registrations. Register must be atomic with respect to capacity and
// uniqueness.
type RegistrationLedger interface {
	Register(ctx context.Context, eventID, userID int64, now time.Time) (*model.RegistrationSummary, error)
	Cancel(ctx context.Context, eventID, userID int64) error
	Usage(ctx context.Context, eventID int64) (*repository.Usage, error)
	ListByEvent(ctx context.Context, eventID int64) ([]model.EventRegistration, error)
}

// UserStore is the persistence the user service needs.
type UserStore interface {
	Create(ctx context.Context, name, email string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Clock returns the current instant.
type Clock func() time.Time

// Option configures a service.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now Clock) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// firstInvalidField returns the JSON name of the first field that failed
// validation, in struct order.
func firstInvalidField(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return verrs[0].Field()
	}
	return ""
}

// logFor returns the request-scoped logger if the context carries one.
func logFor(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
