package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type repos struct {
	events *EventRepository
	users  *UserRepository
	regs   *RegistrationRepository
}

func newRepos(pool *pgxpool.Pool) repos {
	return repos{
		events: NewEventRepository(pool),
		users:  NewUserRepository(pool),
		regs:   NewRegistrationRepository(pool),
	}
}

func (r repos) mustUser(t *testing.T, name string) int64 {
	t.Helper()
	u, err := r.users.Create(context.Background(), name, name+"@example.com")
	require.NoError(t, err)
	return u.ID
}

func (r repos) mustEvent(t *testing.T, at time.Time, seats int) int64 {
	t.Helper()
	e, err := r.events.Create(context.Background(), "Meetup", at, "Hall A", seats)
	require.NoError(t, err)
	return e.ID
}

func TestRegisterSummary(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	userID := r.mustUser(t, "dana")
	eventID := r.mustEvent(t, now.Add(time.Hour), 5)

	summary, err := r.regs.Register(ctx, eventID, userID, now)
	require.NoError(t, err)
	assert.NotZero(t, summary.RegistrationID)
	assert.Equal(t, "dana", summary.User)
	assert.Equal(t, "Meetup", summary.Event)

	usage, err := r.regs.Usage(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, Usage{Capacity: 5, Taken: 1}, *usage)
}

func TestRegisterFailureOrder(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	userID := r.mustUser(t, "eli")
	full := r.mustEvent(t, now.Add(time.Hour), 1)
	past := r.mustEvent(t, now.Add(-time.Hour), 1)

	_, err := r.regs.Register(ctx, full, 9999, now)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = r.regs.Register(ctx, 9999, userID, now)
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = r.regs.Register(ctx, full, userID, now)
	require.NoError(t, err)

	_, err = r.regs.Register(ctx, full, userID, now)
	assert.ErrorIs(t, err, ErrAlreadyRegistered, "duplicate is reported before full")

	other := r.mustUser(t, "fay")
	_, err = r.regs.Register(ctx, full, other, now)
	assert.ErrorIs(t, err, ErrEventFull)

	_, err = r.regs.Register(ctx, past, other, now)
	assert.ErrorIs(t, err, ErrEventPast)
}

func TestRegisterPastEventOutranksFull(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	first := r.mustUser(t, "gus")
	second := r.mustUser(t, "hal")
	eventID := r.mustEvent(t, now.Add(time.Hour), 1)

	_, err := r.regs.Register(ctx, eventID, first, now)
	require.NoError(t, err)

	_, err = r.regs.Register(ctx, eventID, second, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrEventPast)
}

func TestRegisterLastSeatRace(t *testing.T) {
	r := newRepos(setupDB(t))
	now := time.Now().UTC()

	eventID := r.mustEvent(t, now.Add(time.Hour), 1)
	users := []int64{r.mustUser(t, "ivy"), r.mustUser(t, "jon")}

	errs := make([]error, len(users))
	g, ctx := errgroup.WithContext(context.Background())
	for i, userID := range users {
		i, userID := i, userID
		g.Go(func() error {
			_, errs[i] = r.regs.Register(ctx, eventID, userID, now)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrEventFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, full)
}

func TestRegisterSamePairRace(t *testing.T) {
	r := newRepos(setupDB(t))
	now := time.Now().UTC()

	eventID := r.mustEvent(t, now.Add(time.Hour), 10)
	userID := r.mustUser(t, "kai")

	const attempts = 8
	var ok, dup atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := r.regs.Register(ctx, eventID, userID, now)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrAlreadyRegistered):
				dup.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(attempts-1), dup.Load())
}

func TestRegisterNeverExceedsCapacity(t *testing.T) {
	r := newRepos(setupDB(t))
	now := time.Now().UTC()

	const seats, callers = 7, 30
	eventID := r.mustEvent(t, now.Add(time.Hour), seats)
	userIDs := make([]int64, callers)
	for i := range userIDs {
		userIDs[i] = r.mustUser(t, fmt.Sprintf("user%02d", i))
	}

	var ok, full atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			_, err := r.regs.Register(ctx, eventID, userID, now)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrEventFull):
				full.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(seats), ok.Load())
	assert.Equal(t, int32(callers-seats), full.Load())

	usage, err := r.regs.Usage(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, seats, usage.Taken)
}

func TestCancel(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	userID := r.mustUser(t, "lin")
	eventID := r.mustEvent(t, now.Add(time.Hour), 1)

	first, err := r.regs.Register(ctx, eventID, userID, now)
	require.NoError(t, err)

	require.NoError(t, r.regs.Cancel(ctx, eventID, userID))
	assert.ErrorIs(t, r.regs.Cancel(ctx, eventID, userID), ErrRegistrationNotFound)

	second, err := r.regs.Register(ctx, eventID, userID, now)
	require.NoError(t, err)
	assert.Greater(t, second.RegistrationID, first.RegistrationID)
}

func TestConcurrentCancelSucceedsOnce(t *testing.T) {
	r := newRepos(setupDB(t))
	now := time.Now().UTC()

	userID := r.mustUser(t, "moe")
	eventID := r.mustEvent(t, now.Add(time.Hour), 3)
	_, err := r.regs.Register(context.Background(), eventID, userID, now)
	require.NoError(t, err)

	var ok, missing atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			err := r.regs.Cancel(ctx, eventID, userID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrRegistrationNotFound):
				missing.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(4), missing.Load())
}

func TestUsageAndListByEvent(t *testing.T) {
	r := newRepos(setupDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := r.regs.Usage(ctx, 4242)
	assert.ErrorIs(t, err, ErrNotFound)

	eventID := r.mustEvent(t, now.Add(time.Hour), 3)
	regs, err := r.regs.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, regs)
	assert.NotNil(t, regs)

	for _, name := range []string{"ned", "oli"} {
		_, err := r.regs.Register(ctx, eventID, r.mustUser(t, name), now)
		require.NoError(t, err)
	}

	regs, err = r.regs.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "ned", regs[0].User.Name)
	assert.Equal(t, "oli@example.com", regs[1].User.Email)
	assert.Equal(t, time.UTC, regs[0].CreatedAt.Location())
}
