package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/haccare/emr-service/internal/db"
	_ "github.com/lib/pq"
)

// TestDatabaseURLEnv names the variable integration tests read their
// PostgreSQL DSN from.
const TestDatabaseURLEnv = "HACCARE_TEST_DATABASE_URL"

// SetupTestDB connects to the integration database and applies every
// migration. The test is skipped when TestDatabaseURLEnv is unset.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv(TestDatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s not set, skipping integration test", TestDatabaseURLEnv)
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	if _, err := db.NewMigrator(conn).Up(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return conn
}

// CleanupTestDB removes every tenant. Tenant-owned rows cascade.
func CleanupTestDB(t *testing.T, conn *sql.DB) {
	t.Helper()

	for _, stmt := range []string{
		"TRUNCATE TABLE tenants CASCADE",
		"TRUNCATE TABLE user_profiles CASCADE",
	} {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("Failed to clean test database: %v", err)
		}
	}
}
