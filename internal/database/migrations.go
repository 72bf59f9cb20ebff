package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// Migration is one numbered schema change read from disk
type Migration struct {
	Version  string
	Title    string // derived from the filename
	UpSQL    string
	DownSQL  string
	Checksum string // SHA256 of UpSQL
}

// ErrChecksumMismatch is returned when an applied migration file was edited
var ErrChecksumMismatch = errors.New("applied migrations have been modified")

// MigrationExecutor applies *.up.sql files in version order and records them
// in schema_migrations.
type MigrationExecutor struct {
	db *sql.DB
}

// NewMigrationExecutor creates a new migration executor
func NewMigrationExecutor(db *sql.DB) *MigrationExecutor {
	return &MigrationExecutor{db: db}
}

// RunMigrations executes all pending migrations from the migrations directory
func (m *MigrationExecutor) RunMigrations(ctx context.Context, migrationsPath string) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := ReadMigrationFiles(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	applied, err := m.appliedChecksums(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	if err := validateChecksums(migrations, applied); err != nil {
		return err
	}

	for _, migration := range migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}
		if err := m.executeMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
		slog.Info("Applied migration", "version", migration.Version, "title", migration.Title)
	}

	return nil
}

func (m *MigrationExecutor) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			title VARCHAR(500),
			checksum VARCHAR(64),
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// ReadMigrationFiles parses NNN_title.up.sql / NNN_title.down.sql pairs.
// Versions without an up file are ignored.
func ReadMigrationFiles(migrationsPath string) ([]Migration, error) {
	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		filename := file.Name()
		var base string
		var isUp bool
		switch {
		case strings.HasSuffix(filename, ".up.sql"):
			base, isUp = strings.TrimSuffix(filename, ".up.sql"), true
		case strings.HasSuffix(filename, ".down.sql"):
			base = strings.TrimSuffix(filename, ".down.sql")
		default:
			continue
		}

		version, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}

		content, err := os.ReadFile(filepath.Join(migrationsPath, filename))
		if err != nil {
			return nil, err
		}

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{
				Version: version,
				Title:   strings.ReplaceAll(name, "_", " "),
			}
			byVersion[version] = mig
		}

		if isUp {
			mig.UpSQL = string(content)
			mig.Checksum = calculateChecksum(mig.UpSQL)
		} else {
			mig.DownSQL = string(content)
		}
	}

	var migrations []Migration
	for _, mig := range byVersion {
		if mig.UpSQL != "" {
			migrations = append(migrations, *mig)
		}
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// appliedChecksums maps applied versions to their recorded checksum ("" if unknown)
func (m *MigrationExecutor) appliedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, COALESCE(checksum, '') FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		applied[version] = checksum
	}

	return applied, rows.Err()
}

func (m *MigrationExecutor) executeMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("Failed to rollback transaction", "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
		return fmt.Errorf("migration SQL failed: %w", err)
	}

	query := `INSERT INTO schema_migrations (version, title, checksum) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, migration.Version, migration.Title, migration.Checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// validateChecksums fails when a file that was already applied has changed on disk
func validateChecksums(migrations []Migration, applied map[string]string) error {
	var mismatches []string
	for _, migration := range migrations {
		recorded, ok := applied[migration.Version]
		if !ok || recorded == "" {
			continue
		}
		if recorded != migration.Checksum {
			mismatches = append(mismatches, fmt.Sprintf("%s (%s)", migration.Version, migration.Title))
		}
	}

	if len(mismatches) > 0 {
		slices.Sort(mismatches)
		return fmt.Errorf("%w: %s; restore the original files or add a new migration",
			ErrChecksumMismatch, strings.Join(mismatches, ", "))
	}

	return nil
}

func calculateChecksum(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
