package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"narrative-safety/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_create_receipts.up.sql", "CREATE TABLE b();")
	writeFile(t, dir, "002_create_receipts.down.sql", "DROP TABLE b;")
	writeFile(t, dir, "001_create_report_reviews.up.sql", "CREATE TABLE a();")
	writeFile(t, dir, "003_orphan.down.sql", "DROP TABLE c;")
	writeFile(t, dir, "README.md", "ignored")
	writeFile(t, dir, "noversion.up.sql", "SELECT 1;")
	if err := os.Mkdir(filepath.Join(dir, "004_dir.up.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	migrations, err := ReadMigrationFiles(dir)
	if err != nil {
		t.Fatalf("ReadMigrationFiles() error = %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2: %+v", len(migrations), migrations)
	}
	if migrations[0].Version != "001" || migrations[0].Title != "create report reviews" {
		t.Errorf("first migration = %+v", migrations[0])
	}
	if migrations[1].DownSQL != "DROP TABLE b;" {
		t.Errorf("down SQL not paired: %q", migrations[1].DownSQL)
	}
	if migrations[1].Checksum != calculateChecksum("CREATE TABLE b();") {
		t.Error("checksum should be computed over the up SQL")
	}
}

func TestReadMigrationFilesMissingDir(t *testing.T) {
	if _, err := ReadMigrationFiles(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestRepositoryMigrationsParse(t *testing.T) {
	migrations, err := ReadMigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("ReadMigrationFiles() error = %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(migrations))
	}
	for _, m := range migrations {
		if m.DownSQL == "" {
			t.Errorf("migration %s has no down file", m.Version)
		}
	}
}

func TestValidateChecksums(t *testing.T) {
	migrations := []Migration{
		{Version: "001", Title: "a", Checksum: calculateChecksum("a")},
		{Version: "002", Title: "b", Checksum: calculateChecksum("b")},
	}

	if err := validateChecksums(migrations, map[string]string{"001": calculateChecksum("a")}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateChecksums(migrations, map[string]string{"001": ""}); err != nil {
		t.Errorf("legacy rows without checksum should pass: %v", err)
	}

	err := validateChecksums(migrations, map[string]string{"002": calculateChecksum("edited")})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestDSN(t *testing.T) {
	got := DSN(&config.DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable",
	})
	want := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
