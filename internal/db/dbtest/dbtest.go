// Package dbtest opens the integration-test database.
package dbtest

import (
	"os"
	"testing"

	"github.com/CondeArmand/gamemate-backend/internal/config"
	"github.com/CondeArmand/gamemate-backend/internal/db"
)

const EnvURL = "GAMEMATE_TEST_DATABASE_URL"

// Open migrates the database named by GAMEMATE_TEST_DATABASE_URL and empties
// every table. The test is skipped when the variable is unset or the server
// is unreachable.
func Open(t *testing.T) *db.DB {
	t.Helper()
	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s not set", EnvURL)
	}
	d, err := db.Connect(config.DatabaseConfig{URL: url, MaxOpenConns: 10, MaxIdleConns: 2})
	if err != nil {
		t.Skipf("Skipping test: cannot connect to test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := d.Exec(`TRUNCATE user_owned_games, linked_accounts, games, users CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return d
}

// CreateUser inserts a bare user row.
func CreateUser(t *testing.T, d *db.DB, id string) {
	t.Helper()
	if _, err := d.Exec(`INSERT INTO users (id) VALUES ($1)`, id); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}
