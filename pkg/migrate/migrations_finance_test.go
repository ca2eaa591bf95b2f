package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/ptm-finance-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestCashBalanceMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_cash_balance.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS cash_balance",
		"balance NUMERIC(15,2) NOT NULL DEFAULT 0",
		"CREATE TABLE IF NOT EXISTS history_balance",
		"CHECK (value > 0)",
		"DROP TABLE IF EXISTS history_balance",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMembershipDuesMigrationEnforcesPeriodUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_membership_dues.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS membership_dues",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_membership_dues_period",
		"ON membership_dues (member_id, period_year, period_month)",
		"CHECK (period_month BETWEEN 1 AND 12)",
		"DROP TABLE IF EXISTS membership_dues",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Dues Note Index")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_dues_note_index.sql") {
		t.Fatalf("unexpected file name %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestDefaultDirUsesEmbeddedMigrations(t *testing.T) {
	// the test runs from pkg/migrate, where DefaultDir does not exist on disk
	if _, err := os.Stat(migrate.DefaultDir); err == nil {
		t.Skip("default dir reachable on disk")
	}
	if err := migrate.ValidateDir(migrate.DefaultDir); err != nil {
		t.Fatalf("embedded migrations should validate: %v", err)
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad name", "add_index.sql", "-- +goose Up\n-- +goose Down\n"},
		{"missing down", "20250101000000_add_index.sql", "-- +goose Up\nSELECT 1;\n"},
		{"down first", "20250101000000_add_index.sql", "-- +goose Down\n-- +goose Up\n"},
	}
	for _, tt := range tests {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0o644); err != nil {
			t.Fatalf("%s: write: %v", tt.name, err)
		}
		if err := migrate.ValidateDir(dir); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}

	if err := migrate.ValidateDir(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
