// Package model defines the core domain types for the event registration system.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event represents a registrable event with a fixed capacity.
type Event struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	DateTime  time.Time `json:"dateTime"`
	Location  string    `json:"location"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventWithRegistrations is an event together with everyone registered for it.
type EventWithRegistrations struct {
	Event
	Registrations []EventRegistration `json:"registrations"`
}

// User is a person who can register for events. Email is the natural key.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserSummary is the only user projection exposed alongside an event.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EventRegistration links a user to an event. It carries only the user's
// public fields.
type EventRegistration struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"-"`
	EventID   int64       `json:"-"`
	CreatedAt time.Time   `json:"-"`
	User      UserSummary `json:"user"`
}

// RegistrationSummary is returned after a successful registration. User and
// Event carry the user's name and the event's title, joined at read time.
type RegistrationSummary struct {
	RegistrationID int64  `json:"registrationId"`
	User           string `json:"user"`
	Event          string `json:"event"`
}

// Stats describes how much of an event's capacity is taken.
type Stats struct {
	TotalRegistrations       int    `json:"totalRegistrations"`
	RemainingCapacity        int    `json:"remainingCapacity"`
	PercentageOfCapacityUsed string `json:"percentageOfCapacityUsed"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title    string `json:"title" validate:"required"`
	DateTime string `json:"dateTime" validate:"required"`
	Location string `json:"location" validate:"required"`
	Capacity int    `json:"capacity" validate:"required"`
}

// RegisterUserRequest is the payload for creating a user.
type RegisterUserRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

// AttendanceRequest is the payload for registering for or cancelling an event.
type AttendanceRequest struct {
	UserID ID `json:"userId"`
}

// ID is an identifier that decodes from either a JSON number or a numeric
// string. Zero means absent; Invalid is set when a value was supplied but is
// not an integer.
type ID struct {
	Value   int64
	Invalid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ID{}
		return nil
	}
	var raw string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	} else {
		raw = string(b)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*id = ID{}
		return nil
	}
	v, err := ParseID(raw)
	if err != nil {
		*id = ID{Invalid: true}
		return nil
	}
	*id = ID{Value: v}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(id.Value, 10)), nil
}

func (id ID) String() string {
	return strconv.FormatInt(id.Value, 10)
}

// Present reports whether a usable identifier was supplied.
func (id ID) Present() bool {
	return !id.Invalid && id.Value != 0
}

// ParseID parses a positive integer identifier.
func ParseID(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse id %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("parse id %q: must be positive", s)
	}
	return v, nil
}

// Response is the JSON envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	EventID *int64 `json:"eventId,omitempty"`
	Message string `json:"message,omitempty"`
}
