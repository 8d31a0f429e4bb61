// Package repository implements all database queries for the event registration system.
// It uses pgx directly (no ORM) so every statement and lock is visible.
package repository

import (
	"errors"

	"github.com/Shivanand-hulikatti/event-registration/internal/capacity"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEventNotFound is returned when the referenced event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrRegistrationNotFound is returned when no registration exists for a user and event.
	ErrRegistrationNotFound = errors.New("registration not found")

	// ErrAlreadyRegistered is returned when the user already holds a registration for the event.
	ErrAlreadyRegistered = errors.New("user is already registered for this event")

	// ErrEmailTaken is returned when a user with the same email exists.
	ErrEmailTaken = errors.New("user already exists")

	// ErrEventFull is returned when an event has no remaining capacity.
	ErrEventFull = capacity.ErrEventFull

	// ErrEventPast is returned when registering for an event that has started.
	ErrEventPast = capacity.ErrEventPast
)

// PostgreSQL error codes and constraint names the repositories react to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	constraintUserEmail         = "users_email_key"
	constraintRegistrationUser  = "registrations_user_id_fkey"
	constraintRegistrationEvent = "registrations_event_id_fkey"
)

// constraintViolation reports whether err is a PostgreSQL error with the
// given code, and returns the violated constraint name.
func constraintViolation(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}
