package repository

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-registration/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// testPool is shared by every test in the package. It stays nil when the
// container could not be started, and tests skip.
var (
	testPool  *pgxpool.Pool
	setupErr  error
	testDBURL string
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		setupErr = fmt.Errorf("skipping database tests in -short mode")
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	container, err := tcpostgres.Run(
		ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("eventreg"),
		tcpostgres.WithUsername("eventreg"),
		tcpostgres.WithPassword("eventreg"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		cancel()
		setupErr = fmt.Errorf("start postgres container: %w", err)
		os.Exit(m.Run())
	}

	code := func() int {
		defer cancel()
		defer func() { _ = container.Terminate(context.Background()) }()

		testDBURL, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			setupErr = err
			return m.Run()
		}
		if err := migrateWithRetry(testDBURL, 10*time.Second); err != nil {
			setupErr = err
			return m.Run()
		}
		testPool, err = pgxpool.New(ctx, testDBURL)
		if err != nil {
			setupErr = err
			return m.Run()
		}
		defer testPool.Close()
		return m.Run()
	}()
	os.Exit(code)
}

func migrateWithRetry(databaseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := database.MigrateUp(databaseURL)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// setupDB returns the shared pool with all tables emptied.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testPool == nil {
		t.Skipf("database unavailable: %v", setupErr)
	}
	_, err := testPool.Exec(context.Background(),
		`TRUNCATE registrations, events, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return testPool
}
