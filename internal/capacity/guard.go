// Package capacity decides whether an event can accept another registration.
//
// The decision is a pure function of the event's schedule, its capacity and
// the number of registrations already held. Callers are responsible for
// evaluating it while the count cannot change underneath them, which the
// registration repository does by holding a row lock on the event.
package capacity

import (
	"errors"
	"time"
)

// MaxCapacity is the largest capacity an event may be created with.
const MaxCapacity = 1000

var (
	// ErrEventPast is returned when the event has already started.
	ErrEventPast = errors.New("cannot register for past events")

	// ErrEventFull is returned when every seat is taken.
	ErrEventFull = errors.New("event is fully booked")
)

// Slot is the snapshot of an event the guard needs.
type Slot struct {
	DateTime time.Time
	Capacity int
	Taken    int
}

// Admit returns nil when one more registration fits. The past-event rule is
// checked before capacity, so a past event is rejected even when empty.
// An event starting exactly at now is still open.
func Admit(s Slot, now time.Time) error {
	if s.DateTime.UTC().Before(now.UTC()) {
		return ErrEventPast
	}
	if s.Taken >= s.Capacity {
		return ErrEventFull
	}
	return nil
}

// Remaining returns the number of free seats, never below zero.
func Remaining(capacity, taken int) int {
	if taken >= capacity {
		return 0
	}
	return capacity - taken
}

// ValidCapacity reports whether c is within the accepted range.
func ValidCapacity(c int) bool {
	return c >= 1 && c <= MaxCapacity
}
