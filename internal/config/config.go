package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `validate:"min=1,max=65535"`
	LogLevel string `validate:"oneof=debug info warn error"`

	// HTTP client
	HTTPTimeout time.Duration `validate:"gt=0"`

	// Aggregation
	FetchTimeout         time.Duration `validate:"gt=0"`
	MaxSyncPages         int           `validate:"min=1"`
	TransactionsPageSize int           `validate:"min=1,max=100"`

	// Resilience
	MaxRetries     int           `validate:"min=0"`
	InitialBackoff time.Duration `validate:"gte=0"`
	MaxConcurrency int           `validate:"min=1"`

	// Institution cache
	InstitutionCacheSize int           `validate:"min=0"`
	InstitutionCacheTTL  time.Duration `validate:"gt=0"`

	// Observability
	OTLPEndpoint string

	// Store
	StoreBackend string `validate:"oneof=supabase postgres"`

	// Supabase
	SupabaseURL        string `validate:"required_if=StoreBackend supabase"`
	SupabaseAnonKey    string `validate:"required_if=StoreBackend supabase"`
	SupabaseServiceKey string `validate:"required_if=StoreBackend supabase"`

	// Postgres
	DatabaseURL string `validate:"required_if=StoreBackend postgres"`
	DBMaxConns  int    `validate:"min=1"`

	// Plaid (account-data provider)
	PlaidClientID string `validate:"required"`
	PlaidSecret   string `validate:"required"`
	PlaidEnv      string `validate:"oneof=sandbox production"`

	// JWT / Auth
	JWTSecret    string        `validate:"required,min=16"`
	JWTAccessTTL time.Duration `validate:"gt=0"`

	// Dev mode
	DevAuth bool // DEV_AUTH=true exposes POST /v1/dev/token
}

// LoadDotEnv reads a .env file into the environment.
// Existing env vars take precedence over values in the file.
func LoadDotEnv(path string) error {
	return godotenv.Load(path)
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		FetchTimeout:         getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		MaxSyncPages:         getEnvInt("MAX_SYNC_PAGES", 50),
		TransactionsPageSize: getEnvInt("TRANSACTIONS_PAGE_SIZE", 10),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 20),

		InstitutionCacheSize: getEnvInt("INSTITUTION_CACHE_SIZE", 512),
		InstitutionCacheTTL:  getEnvDuration("INSTITUTION_CACHE_TTL", 24*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendSupabase)),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),

		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   getEnv("PLAID_SECRET", ""),
		PlaidEnv:      strings.ToLower(getEnv("PLAID_ENV", "sandbox")),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),

		DevAuth: getEnv("DEV_AUTH", "false") == "true",
	}
}

// Validate checks the loaded configuration and reports every invalid field.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
