package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	App       AppConfig
	Log       LogConfig
	Judge     JudgeConfig
	Review    ReviewConfig
	Receipts  ReceiptsConfig
	Email     EmailConfig
	Scheduler SchedulerConfig
	Vault     VaultConfig
	Metrics   MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

// JWTConfig holds JWT-related configuration.
// PublicKey is a PEM encoded ECDSA P-256 key used to verify bearer tokens.
type JWTConfig struct {
	PublicKey string
	Issuer    string
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env          string
	Name         string
	Version      string
	DashboardURL string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// JudgeConfig holds harm judge configuration
type JudgeConfig struct {
	Provider     string // anthropic, openai, ollama or disabled
	APIKey       string
	Model        string
	BaseURL      string
	Timeout      time.Duration
	ExcerptChars int
}

// ReviewConfig holds review queue configuration
type ReviewConfig struct {
	Store    string // postgres or memory
	PageSize int
}

// ReceiptsConfig holds receipt log and archive configuration
type ReceiptsConfig struct {
	Backend        string // postgres or memory
	ExportDir      string
	ExportInterval time.Duration
	ExportReset    bool
	GCSBucket      string
	GCSPrefix      string
	GCSCredentials string
}

// EmailConfig holds email-related configuration
type EmailConfig struct {
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	ReviewerAddress string
}

// Enabled reports whether SMTP delivery is configured
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.ReviewerAddress != ""
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	PendingDigestCron   string // e.g., "0 8 * * *" (Daily 8 AM)
	EnablePendingDigest bool
	EnableReceiptExport bool
}

// VaultConfig holds Vault-related configuration
type VaultConfig struct {
	Address      string
	Token        string
	TransitMount string
	SigningKey   string
	Enabled      bool
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// godotenv doesn't override already-set variables, so order matters
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			TimeoutRead:  getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDurationEnv("SERVER_TIMEOUT_WRITE", 90*time.Second), // judge calls may take up to a minute
			TimeoutIdle:  getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "narrative"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "narrative_safety"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		JWT: JWTConfig{
			PublicKey: getEnv("JWT_PUBLIC_KEY", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			ExposedHeaders:   getSliceEnv("CORS_EXPOSED_HEADERS", []string{"X-Request-ID"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getIntEnv("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
		},
		App: AppConfig{
			Env:          getEnv("APP_ENV", "development"),
			Name:         getEnv("APP_NAME", "Narrative Safety"),
			Version:      getEnv("APP_VERSION", "1.0.0"),
			DashboardURL: getEnv("APP_DASHBOARD_URL", "http://localhost:3000"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Judge: JudgeConfig{
			Provider:     strings.ToLower(getEnv("JUDGE_PROVIDER", "anthropic")),
			APIKey:       getEnv("JUDGE_API_KEY", ""),
			Model:        getEnv("JUDGE_MODEL", ""),
			BaseURL:      getEnv("JUDGE_BASE_URL", ""),
			Timeout:      getDurationEnv("JUDGE_TIMEOUT", 60*time.Second),
			ExcerptChars: getIntEnv("JUDGE_EXCERPT_CHARS", 3000),
		},
		Review: ReviewConfig{
			Store:    strings.ToLower(getEnv("REVIEW_STORE", "postgres")),
			PageSize: getIntEnv("REVIEW_PAGE_SIZE", 50),
		},
		Receipts: ReceiptsConfig{
			Backend:        strings.ToLower(getEnv("RECEIPTS_BACKEND", "postgres")),
			ExportDir:      getEnv("RECEIPTS_EXPORT_DIR", "receipts"),
			ExportInterval: getDurationEnv("RECEIPTS_EXPORT_INTERVAL", 1*time.Hour),
			ExportReset:    getBoolEnv("RECEIPTS_EXPORT_RESET", true),
			GCSBucket:      getEnv("RECEIPTS_GCS_BUCKET", ""),
			GCSPrefix:      getEnv("RECEIPTS_GCS_PREFIX", "constitutional-receipts"),
			GCSCredentials: getEnv("RECEIPTS_GCS_CREDENTIALS", ""),
		},
		Email: EmailConfig{
			SMTPHost:        getEnv("SMTP_HOST", ""),
			SMTPPort:        getEnv("SMTP_PORT", "587"),
			SMTPUsername:    getEnv("SMTP_USERNAME", ""),
			SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:        getEnv("SMTP_FROM", "noreply@example.com"),
			ReviewerAddress: getEnv("REVIEWER_EMAIL", ""),
		},
		Scheduler: SchedulerConfig{
			PendingDigestCron:   getEnv("SCHEDULER_PENDING_DIGEST_CRON", "0 8 * * *"), // Daily 8 AM
			EnablePendingDigest: getBoolEnv("SCHEDULER_ENABLE_PENDING_DIGEST", true),
			EnableReceiptExport: getBoolEnv("SCHEDULER_ENABLE_RECEIPT_EXPORT", true),
		},
		Vault: VaultConfig{
			Address:      getEnv("VAULT_ADDR", "http://localhost:8200"),
			Token:        getEnv("VAULT_TOKEN", ""),
			TransitMount: getEnv("VAULT_TRANSIT_MOUNT", "transit"),
			SigningKey:   getEnv("VAULT_RECEIPT_SIGNING_KEY", "constitutional-receipts"),
			Enabled:      getBoolEnv("VAULT_ENABLED", false),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.PublicKey == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY is required")
	}
	if c.Database.Password == "" && c.App.Env == "production" {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}

	switch c.Judge.Provider {
	case "anthropic", "openai":
		if c.Judge.APIKey == "" {
			return fmt.Errorf("JUDGE_API_KEY is required for provider %s", c.Judge.Provider)
		}
	case "ollama", "disabled":
	default:
		return fmt.Errorf("JUDGE_PROVIDER must be one of anthropic, openai, ollama, disabled (got %q)", c.Judge.Provider)
	}
	if c.Judge.Provider == "disabled" && c.App.Env == "production" {
		return fmt.Errorf("JUDGE_PROVIDER=disabled is not allowed in production")
	}

	if err := oneOf("REVIEW_STORE", c.Review.Store, "postgres", "memory"); err != nil {
		return err
	}
	if err := oneOf("RECEIPTS_BACKEND", c.Receipts.Backend, "postgres", "memory"); err != nil {
		return err
	}
	if c.Receipts.GCSBucket != "" && c.Receipts.GCSCredentials == "" {
		return fmt.Errorf("RECEIPTS_GCS_CREDENTIALS is required when RECEIPTS_GCS_BUCKET is set")
	}
	if c.Vault.Enabled && c.Vault.Token == "" {
		return fmt.Errorf("VAULT_TOKEN is required when VAULT_ENABLED is true")
	}

	return nil
}

// UsesPostgres reports whether any component needs a database connection
func (c *Config) UsesPostgres() bool {
	return c.Review.Store == "postgres" || c.Receipts.Backend == "postgres"
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s (got %q)", key, strings.Join(allowed, ", "), value)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
