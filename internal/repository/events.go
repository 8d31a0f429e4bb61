package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-registration/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event and returns it with its generated id.
// Times are stored in UTC.
func (r *EventRepository) Create(ctx context.Context, title string, dateTime time.Time, location string, capacity int) (*model.Event, error) {
	event := &model.Event{
		Title:    title,
		DateTime: dateTime.UTC(),
		Location: location,
		Capacity: capacity,
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO events (title, date_time, location, capacity)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		event.Title, event.DateTime, event.Location, event.Capacity,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	event.CreatedAt = event.CreatedAt.UTC()
	return event, nil
}

// List returns all events ordered by date ascending, each with its registrations.
// Both reads share one repeatable-read snapshot so every registration belongs
// to a listed event.
func (r *EventRepository) List(ctx context.Context) ([]model.EventWithRegistrations, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT id, title, date_time, location, capacity, created_at
		 FROM events
		 ORDER BY date_time ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	plain, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	events := make([]model.EventWithRegistrations, len(plain))
	byID := make(map[int64]int, len(plain))
	for i, e := range plain {
		events[i] = model.EventWithRegistrations{Event: e, Registrations: []model.EventRegistration{}}
		byID[e.ID] = i
	}
	if len(events) == 0 {
		return events, nil
	}

	regRows, err := tx.Query(ctx,
		`SELECT r.id, r.user_id, r.event_id, r.created_at, u.id, u.name, u.email
		 FROM registrations r
		 JOIN users u ON u.id = r.user_id
		 ORDER BY r.event_id ASC, r.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer regRows.Close()

	for regRows.Next() {
		var reg model.EventRegistration
		if err := regRows.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.CreatedAt,
			&reg.User.ID, &reg.User.Name, &reg.User.Email); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		reg.CreatedAt = reg.CreatedAt.UTC()
		if i, ok := byID[reg.EventID]; ok {
			events[i].Registrations = append(events[i].Registrations, reg)
		}
	}
	if err := regRows.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return events, nil
}

// ListUpcoming returns events starting at or after now, ordered by date and
// then location.
func (r *EventRepository) ListUpcoming(ctx context.Context, now time.Time) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, date_time, location, capacity, created_at
		 FROM events
		 WHERE date_time >= $1
		 ORDER BY date_time ASC, location ASC, id ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return scanEvents(rows)
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, title, date_time, location, capacity, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.DateTime, &e.Location, &e.Capacity, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	e.DateTime = e.DateTime.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.DateTime, &e.Location, &e.Capacity, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.DateTime = e.DateTime.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}
