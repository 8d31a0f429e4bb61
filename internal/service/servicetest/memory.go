// Package servicetest provides an in-memory implementation of the service
// stores for tests that do not need PostgreSQL.
//
// A single mutex serialises every operation, which stands in for the row
// lock and unique constraints the PostgreSQL repositories rely on.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-registration/internal/capacity"
	"github.com/Shivanand-hulikatti/event-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-registration/internal/repository"
)

type registration struct {
	id        int64
	userID    int64
	eventID   int64
	createdAt time.Time
}

// Store holds users, events and registrations in memory.
type Store struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]model.User
	events map[int64]model.Event
	regs   []registration

	// Err, when set, is returned by every operation.
	Err error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:  map[int64]model.User{},
		events: map[int64]model.Event{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Events returns the store's service.EventStore view.
func (s *Store) Events() *Events { return &Events{s} }

// Users returns the store's service.UserStore view.
func (s *Store) Users() *Users { return &Users{s} }

// Registrations returns the store's service.RegistrationLedger view.
func (s *Store) Registrations() *Registrations { return &Registrations{s} }

// AddEvent inserts an event directly, bypassing validation. Useful for past events.
func (s *Store) AddEvent(title string, dateTime time.Time, location string, seats int) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := model.Event{ID: s.id(), Title: title, DateTime: dateTime.UTC(), Location: location, Capacity: seats, CreatedAt: time.Now().UTC()}
	s.events[e.ID] = e
	return e
}

// Count returns the number of registrations held for an event.
func (s *Store) Count(eventID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(eventID)
}

func (s *Store) countLocked(eventID int64) int {
	n := 0
	for _, r := range s.regs {
		if r.eventID == eventID {
			n++
		}
	}
	return n
}

func (s *Store) findLocked(eventID, userID int64) int {
	for i, r := range s.regs {
		if r.eventID == eventID && r.userID == userID {
			return i
		}
	}
	return -1
}

func (s *Store) projectLocked(r registration) model.EventRegistration {
	u := s.users[r.userID]
	return model.EventRegistration{
		ID:        r.id,
		UserID:    r.userID,
		EventID:   r.eventID,
		CreatedAt: r.createdAt,
		User:      model.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email},
	}
}

// Events implements service.EventStore.
type Events struct{ s *Store }

func (e *Events) Create(_ context.Context, title string, dateTime time.Time, location string, seats int) (*model.Event, error) {
	if e.s.Err != nil {
		return nil, e.s.Err
	}
	ev := e.s.AddEvent(title, dateTime, location, seats)
	return &ev, nil
}

func (e *Events) List(_ context.Context) ([]model.EventWithRegistrations, error) {
	if e.s.Err != nil {
		return nil, e.s.Err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	out := []model.EventWithRegistrations{}
	for _, ev := range e.s.sortedLocked(func(a, b model.Event) bool {
		if !a.DateTime.Equal(b.DateTime) {
			return a.DateTime.Before(b.DateTime)
		}
		return a.ID < b.ID
	}) {
		item := model.EventWithRegistrations{Event: ev, Registrations: []model.EventRegistration{}}
		for _, r := range e.s.regs {
			if r.eventID == ev.ID {
				item.Registrations = append(item.Registrations, e.s.projectLocked(r))
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (e *Events) ListUpcoming(_ context.Context, now time.Time) ([]model.Event, error) {
	if e.s.Err != nil {
		return nil, e.s.Err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	out := []model.Event{}
	for _, ev := range e.s.sortedLocked(func(a, b model.Event) bool {
		if !a.DateTime.Equal(b.DateTime) {
			return a.DateTime.Before(b.DateTime)
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.ID < b.ID
	}) {
		if !ev.DateTime.Before(now) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (e *Events) GetByID(_ context.Context, id int64) (*model.Event, error) {
	if e.s.Err != nil {
		return nil, e.s.Err
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	ev, ok := e.s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ev, nil
}

func (s *Store) sortedLocked(less func(a, b model.Event) bool) []model.Event {
	events := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return less(events[i], events[j]) })
	return events
}

// Users implements service.UserStore.
type Users struct{ s *Store }

func (u *Users) Create(_ context.Context, name, email string) (*model.User, error) {
	if u.s.Err != nil {
		return nil, u.s.Err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Email == email {
			return nil, repository.ErrEmailTaken
		}
	}
	user := model.User{ID: u.s.id(), Name: name, Email: email, CreatedAt: time.Now().UTC()}
	u.s.users[user.ID] = user
	return &user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u.s.Err != nil {
		return nil, u.s.Err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Email == email {
			found := existing
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Registrations implements service.RegistrationLedger.
type Registrations struct{ s *Store }

func (r *Registrations) Register(_ context.Context, eventID, userID int64, now time.Time) (*model.RegistrationSummary, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if r.s.findLocked(eventID, userID) >= 0 {
		return nil, repository.ErrAlreadyRegistered
	}
	ev, ok := r.s.events[eventID]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	slot := capacity.Slot{DateTime: ev.DateTime, Capacity: ev.Capacity, Taken: r.s.countLocked(eventID)}
	if err := capacity.Admit(slot, now); err != nil {
		return nil, err
	}

	reg := registration{id: r.s.id(), userID: userID, eventID: eventID, createdAt: time.Now().UTC()}
	r.s.regs = append(r.s.regs, reg)
	return &model.RegistrationSummary{RegistrationID: reg.id, User: user.Name, Event: ev.Title}, nil
}

func (r *Registrations) Cancel(_ context.Context, eventID, userID int64) error {
	if r.s.Err != nil {
		return r.s.Err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.s.findLocked(eventID, userID)
	if i < 0 {
		return repository.ErrRegistrationNotFound
	}
	r.s.regs = append(r.s.regs[:i], r.s.regs[i+1:]...)
	return nil
}

func (r *Registrations) Usage(_ context.Context, eventID int64) (*repository.Usage, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev, ok := r.s.events[eventID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &repository.Usage{Capacity: ev.Capacity, Taken: r.s.countLocked(eventID)}, nil
}

func (r *Registrations) ListByEvent(_ context.Context, eventID int64) ([]model.EventRegistration, error) {
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.EventRegistration{}
	for _, reg := range r.s.regs {
		if reg.eventID == eventID {
			out = append(out, r.s.projectLocked(reg))
		}
	}
	return out, nil
}
