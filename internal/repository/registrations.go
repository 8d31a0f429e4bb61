package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-registration/internal/capacity"
	"github.com/Shivanand-hulikatti/event-registration/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registration/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationRepository is the registration ledger.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Usage is an event's capacity together with its current registration count.
type Usage struct {
	Capacity int
	Taken    int
}

// Register creates a registration for userID on eventID, or explains why it
// cannot. Failures are reported in this order, each short-circuiting:
//
//	ErrUserNotFound      the user does not exist
//	ErrAlreadyRegistered the user already holds a registration for the event
//	ErrEventNotFound     the event does not exist
//	ErrEventPast         the event started before now
//	ErrEventFull         every seat is taken
//
// ─────────────────────────────────────────────────────────────────────────────
// RACE CONDITION
// ─────────────────────────────────────────────────────────────────────────────
//
// Counting registrations and inserting afterwards is unsafe on its own:
//
//	request A: SELECT count(*) … WHERE event_id = X  → 9 (capacity 10)
//	request B: SELECT count(*) … WHERE event_id = X  → 9
//	request A: INSERT registration                   → 10
//	request B: INSERT registration                   → 11, over capacity
//
// Every check and the insert run in one transaction that first takes a row
// lock on the event (SELECT … FOR UPDATE). A second transaction for the same
// event blocks on that lock until the first commits or rolls back, and its
// later statements see the committed row. Requests for different events do
// not contend. The lock lives in PostgreSQL, so it holds across processes.
//
// The duplicate check runs after the lock is taken, so two racing requests
// for the same user and event report ErrAlreadyRegistered rather than
// ErrEventFull. The unique constraint on (user_id, event_id) backs this up:
// the insert is ON CONFLICT DO NOTHING and an empty result is a duplicate.
// ─────────────────────────────────────────────────────────────────────────────
func (r *RegistrationRepository) Register(ctx context.Context, eventID, userID int64, now time.Time) (summary *model.RegistrationSummary, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("register", start, unexpected(err)) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// ── Step 1: the user must exist. ────────────────────────────────────────
	var exists bool
	if err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	// ── Step 2: lock the event row. ─────────────────────────────────────────
	// A registration cannot reference a missing event, so reporting a missing
	// event before the duplicate check does not change the observed order.
	var slot capacity.Slot
	err = tx.QueryRow(ctx,
		`SELECT date_time, capacity
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	).Scan(&slot.DateTime, &slot.Capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}

	// ── Step 3: duplicate check, after the lock so racing pairs see it. ─────
	if err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	// ── Step 4: schedule and capacity, while the lock is held. ──────────────
	if err = tx.QueryRow(ctx,
		`SELECT count(*) FROM registrations WHERE event_id = $1`, eventID,
	).Scan(&slot.Taken); err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	if err = capacity.Admit(slot, now); err != nil {
		return nil, err
	}

	// ── Step 5: insert and project the user name and event title. ───────────
	summary = &model.RegistrationSummary{}
	err = tx.QueryRow(ctx,
		`WITH ins AS (
			INSERT INTO registrations (user_id, event_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, event_id) DO NOTHING
			RETURNING id, user_id, event_id
		 )
		 SELECT ins.id, u.name, e.title
		 FROM ins
		 JOIN users u ON u.id = ins.user_id
		 JOIN events e ON e.id = ins.event_id`,
		userID, eventID,
	).Scan(&summary.RegistrationID, &summary.User, &summary.Event)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyRegistered
		}
		if c, ok := constraintViolation(err, codeForeignKeyViolation); ok {
			if c == constraintRegistrationUser {
				return nil, ErrUserNotFound
			}
			if c == constraintRegistrationEvent {
				return nil, ErrEventNotFound
			}
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	// ── Step 6: commit, releasing the event lock. ───────────────────────────
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return summary, nil
}

// Cancel deletes the registration for userID on eventID, freeing one seat.
// Concurrent cancels of the same registration see exactly one success; the
// rest get ErrRegistrationNotFound.
func (r *RegistrationRepository) Cancel(ctx context.Context, eventID, userID int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("cancel", start, unexpected(err)) }()

	var id int64
	err = r.db.QueryRow(ctx,
		`DELETE FROM registrations
		 WHERE user_id = $1 AND event_id = $2
		 RETURNING id`,
		userID, eventID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

// Usage returns the event's capacity and registration count read in a
// single statement, or ErrNotFound.
func (r *RegistrationRepository) Usage(ctx context.Context, eventID int64) (*Usage, error) {
	var u Usage
	err := r.db.QueryRow(ctx,
		`SELECT e.capacity,
		        (SELECT count(*) FROM registrations r WHERE r.event_id = e.id)
		 FROM events e
		 WHERE e.id = $1`,
		eventID,
	).Scan(&u.Capacity, &u.Taken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("event usage: %w", err)
	}
	return &u, nil
}

// ListByEvent returns the registrations for an event in creation order,
// each with the registered user's public fields.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID int64) ([]model.EventRegistration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.user_id, r.event_id, r.created_at, u.id, u.name, u.email
		 FROM registrations r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.event_id = $1
		 ORDER BY r.id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	regs := []model.EventRegistration{}
	for rows.Next() {
		var reg model.EventRegistration
		if err := rows.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.CreatedAt,
			&reg.User.ID, &reg.User.Name, &reg.User.Email); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		reg.CreatedAt = reg.CreatedAt.UTC()
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// unexpected drops the ledger's business outcomes so only real storage
// failures reach the error metrics.
func unexpected(err error) error {
	switch {
	case err == nil,
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrRegistrationNotFound),
		errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrEventFull),
		errors.Is(err, ErrEventPast):
		return nil
	}
	return err
}
