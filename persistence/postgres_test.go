package persistence

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dshills/smolvec/core"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its DSN.
// Tests are skipped if no container runtime is available.
func setupPostgres(t *testing.T) string {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration tests in short mode")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("smolvec_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}
	return dsn
}

func TestPostgresStore(t *testing.T) {
	dsn := setupPostgres(t)

	store, err := NewPostgresStore(context.Background(), "suite", PostgresConfig{
		DSN:            dsn,
		MaxConns:       5,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	defer store.Close()

	testStoreOperations(t, store)
}

func TestPostgresKeySpacesAreIsolated(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	backend := PostgresBackend(PostgresConfig{DSN: dsn, MigrateOnStart: true})

	a, err := backend.Open(ctx, "a")
	if err != nil {
		t.Fatalf("opening space a: %v", err)
	}
	defer a.Close()

	b, err := backend.Open(ctx, "b")
	if err != nil {
		t.Fatalf("opening space b: %v", err)
	}
	defer b.Close()

	if err := a.Put(ctx, []byte("vec:x"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := b.Get(ctx, []byte("vec:x")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound in other space, got %v", err)
	}
	for _, err := range b.Scan(ctx, nil, nil) {
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		t.Error("expected empty scan in other space")
	}
}
