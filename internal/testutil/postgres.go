package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const templateDB = "strata_template"

var (
	serverOnce sync.Once
	serverDSN  string
	serverErr  error

	templateOnce sync.Once
	templateErr  error
)

// ensureServer returns an admin DSN, starting a PostgreSQL container unless
// DATABASE_URL or DATABASE_HOST point at an existing server.
func ensureServer() (string, error) {
	serverOnce.Do(func() {
		if cfg := ServerFromEnv(); cfg.URL != "" {
			serverDSN = cfg.URL
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			serverErr = fmt.Errorf("start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			serverErr = fmt.Errorf("PostgreSQL connection string: %w", err)
			return
		}
		// ryuk removes the container when the test binary exits.
		serverDSN = dsn
	})
	return serverDSN, serverErr
}

// ensureTemplate builds the fixture database once so each test can copy it.
func ensureTemplate(adminDSN string) error {
	templateOnce.Do(func() {
		admin, err := sql.Open("pgx", adminDSN)
		if err != nil {
			templateErr = err
			return
		}
		defer func() { _ = admin.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		_, _ = admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+templateDB)
		if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+templateDB); err != nil {
			templateErr = fmt.Errorf("create template database: %w", err)
			return
		}

		tmpl, err := sql.Open("pgx", replaceDBName(adminDSN, templateDB))
		if err != nil {
			templateErr = err
			return
		}
		if err := Load(ctx, tmpl); err != nil {
			_ = tmpl.Close()
			templateErr = err
			return
		}
		_ = tmpl.Close()

		// Copying still works without the flag, only slower.
		_, _ = admin.ExecContext(ctx, fmt.Sprintf("ALTER DATABASE %s WITH is_template = true", templateDB))
	})
	return templateErr
}

// Postgres returns a fixture database on PostgreSQL. Each call copies the
// template into a fresh database that is dropped when the test completes.
// The test is skipped in -short mode or when no server can be reached.
func Postgres(tb testing.TB) *sql.DB {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping PostgreSQL test in short mode")
	}

	adminDSN, err := ensureServer()
	if err != nil {
		tb.Skipf("PostgreSQL unavailable: %v", err)
	}
	require.NoError(tb, ensureTemplate(adminDSN), "failed to build template database")

	name := uniqueDBName("strata")
	admin, err := sql.Open("pgx", adminDSN)
	require.NoError(tb, err)
	_, err = admin.Exec(fmt.Sprintf("CREATE DATABASE %s WITH TEMPLATE %s", name, templateDB))
	_ = admin.Close()
	require.NoError(tb, err, "failed to copy template database")

	db, err := sql.Open("pgx", replaceDBName(adminDSN, name))
	require.NoError(tb, err)
	db.SetMaxOpenConns(ServerFromEnv().MaxConns)
	require.NoError(tb, db.Ping())

	tb.Cleanup(func() {
		_ = db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dropDatabase(ctx, adminDSN, name)
	})
	return db
}

func dropDatabase(ctx context.Context, adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, _ = db.ExecContext(ctx, fmt.Sprintf(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = '%s' AND pid <> pg_backend_pid()
	`, name))

	_, err = db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+name)
	return err
}

func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// replaceDBName swaps the database path segment of a URL-form DSN.
func replaceDBName(dsn, db string) string {
	rest := ""
	if q := strings.IndexByte(dsn, '?'); q >= 0 {
		dsn, rest = dsn[:q], dsn[q:]
	}
	if i := strings.LastIndexByte(dsn, '/'); i >= 0 {
		return dsn[:i+1] + db + rest
	}
	return dsn
}
