package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestEventCreateAndGet(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()

	at := time.Date(2031, 5, 4, 18, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	created, err := r.events.Create(ctx, "Launch", at, "Rooftop", 40)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := r.events.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch", got.Title)
	assert.True(t, got.DateTime.Equal(at))
	assert.Equal(t, time.UTC, got.DateTime.Location())

	_, err = r.events.GetByID(ctx, created.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventCapacityConstraint(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()

	_, err := r.events.Create(ctx, "Huge", time.Now().Add(time.Hour), "Field", 1001)
	assert.Error(t, err)
	_, err = r.events.Create(ctx, "Empty", time.Now().Add(time.Hour), "Field", 0)
	assert.Error(t, err)
}

func TestListUpcomingOrdering(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	at := now.Add(24 * time.Hour)
	mk := func(title, location string, when time.Time) int64 {
		e, err := r.events.Create(ctx, title, when, location, 10)
		require.NoError(t, err)
		return e.ID
	}
	mk("past", "A", now.Add(-time.Minute))
	b := mk("b", "Beta", at)
	a := mk("a", "Alpha", at)
	later := mk("later", "Alpha", at.Add(time.Hour))
	startsNow := mk("now", "Zeta", now)

	events, err := r.events.ListUpcoming(ctx, now)
	require.NoError(t, err)

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	assert.Equal(t, []int64{startsNow, a, b, later}, ids)
}

func TestListIncludesRegistrations(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	second := r.mustEvent(t, now.Add(48*time.Hour), 5)
	first := r.mustEvent(t, now.Add(24*time.Hour), 5)
	userID := r.mustUser(t, "pia")
	_, err := r.regs.Register(ctx, second, userID, now)
	require.NoError(t, err)

	events, err := r.events.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, first, events[0].ID)
	assert.NotNil(t, events[0].Registrations)
	assert.Empty(t, events[0].Registrations)

	assert.Equal(t, second, events[1].ID)
	require.Len(t, events[1].Registrations, 1)
	assert.Equal(t, "pia", events[1].Registrations[0].User.Name)
}

func TestUserEmailUnique(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()

	u, err := r.users.Create(ctx, "Quinn", "quinn@example.com")
	require.NoError(t, err)

	_, err = r.users.Create(ctx, "Quinn Again", "quinn@example.com")
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := r.users.GetByEmail(ctx, "quinn@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = r.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quinn", got.Name)

	_, err = r.users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserCreateRace(t *testing.T) {
	r := newRepos(setupDB(t))

	var ok, taken atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 6; i++ {
		i := i
		g.Go(func() error {
			_, err := r.users.Create(ctx, fmt.Sprintf("Ray %d", i), "ray@example.com")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrEmailTaken):
				taken.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(5), taken.Load())
}
