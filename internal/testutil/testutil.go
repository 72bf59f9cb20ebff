package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"narrative-safety/internal/database"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/vault"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"
)

// PostgresContainer holds a migrated PostgreSQL test database
type PostgresContainer struct {
	Container    *postgres.PostgresContainer
	DB           *sql.DB
	DBConnString string
}

// SetupPostgres starts PostgreSQL and applies the schema migrations.
// Tests calling it are skipped under -short.
func SetupPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18",
		postgres.WithDatabase("narrative_test"),
		postgres.WithUsername("narrative_test"),
		postgres.WithPassword("narrative_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
	if err := database.NewMigrationExecutor(db).RunMigrations(ctx, migrationsDir()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	pc := &PostgresContainer{Container: container, DB: db, DBConnString: connStr}
	t.Cleanup(func() { pc.Cleanup(t) })
	return pc
}

// Cleanup closes the database and terminates the container
func (pc *PostgresContainer) Cleanup(t *testing.T) {
	t.Helper()
	if pc.DB != nil {
		pc.DB.Close()
		pc.DB = nil
	}
	if pc.Container != nil {
		if err := pc.Container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
		pc.Container = nil
	}
}

// VaultContainer holds a dev-mode Vault server
type VaultContainer struct {
	Container *vault.VaultContainer
	Addr      string
	Token     string
}

// SetupVault starts Vault in dev mode. Skipped under -short.
func SetupVault(t *testing.T) *VaultContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := vault.Run(ctx,
		"hashicorp/vault:1.15",
		vault.WithToken("test-token"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Vault server started!").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start Vault container: %v", err)
	}

	addr, err := container.HttpHostAddress(ctx)
	if err != nil {
		t.Fatalf("Failed to get Vault address: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate Vault container: %v", err)
		}
	})

	return &VaultContainer{
		Container: container,
		Addr:      fmt.Sprintf("http://%s", addr),
		Token:     "test-token",
	}
}

// migrationsDir locates the repository migrations from a package directory
func migrationsDir() string {
	dir := filepath.Join("..", "..", "migrations")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		dir = filepath.Join("..", "..", "..", "migrations")
	}
	return dir
}
