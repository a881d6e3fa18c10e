package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	DatabaseURL      string
	Store            string

	RedisAddr         string
	RedisPassword     string
	RedisAlertChannel string

	Sources              []string
	IngestionInterval    time.Duration
	MaxPages             int
	MaxDetailCalls       int
	DetailConcurrency    int
	DetailRequestTimeout time.Duration
	ProviderTimeout      time.Duration
	PageDelayMs          int
	DetailDelayMs        int
	SourceConcurrency    int
	MaxRetries           int

	SearchPriceMax float64
	SearchMode     string

	// AlertUserID selects whose learned weights gate alerts; 0 uses base weights.
	AlertUserID int64

	CriteriaPath   string
	CriteriaReload time.Duration

	GatewayURL     string
	GatewayAPIKey  string
	PageSearchURL  string
	BrowserURL     string
	CuratedCSVPath string
	ChromeBin      string
	ExportCSVPath  string

	LogLevel string
	RunOnce  bool
}

// minProviderTimeout is the floor applied to ProviderTimeout.
const minProviderTimeout = 30 * time.Second

// Load reads the .env file and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "homescout"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "homescout"),
		PostgresDB:       getEnv("POSTGRES_DB", "homescout"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		Store:            strings.ToLower(getEnv("STORE", "memory")),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisAlertChannel: getEnv("REDIS_ALERT_CHANNEL", "homescout:alerts"),

		Sources:              splitList(getEnv("INGESTION_SOURCES", "mock")),
		IngestionInterval:    time.Duration(getEnvInt("INGESTION_INTERVAL_HOURS", 6)) * time.Hour,
		MaxPages:             getEnvInt("MAX_PAGES", 25),
		MaxDetailCalls:       getEnvInt("MAX_DETAIL_CALLS", 200),
		DetailConcurrency:    getEnvInt("INGESTION_DETAIL_CONCURRENCY", 4),
		DetailRequestTimeout: getEnvSeconds("INGESTION_DETAIL_REQUEST_TIMEOUT_SECONDS", 30),
		ProviderTimeout:      getEnvSeconds("INGESTION_PROVIDER_TIMEOUT_SECONDS", 600),
		PageDelayMs:          getEnvInt("INGESTION_PAGE_DELAY_MS", 0),
		DetailDelayMs:        getEnvInt("INGESTION_DETAIL_DELAY_MS", 0),
		SourceConcurrency:    getEnvInt("INGESTION_SOURCE_CONCURRENCY", 1),
		MaxRetries:           getEnvInt("MAX_RETRIES", 3),

		SearchPriceMax: getEnvFloat("SEARCH_PRICE_MAX", 0),
		SearchMode:     strings.ToLower(getEnv("SEARCH_MODE", "buy")),

		AlertUserID: int64(getEnvInt("ALERT_USER_ID", 0)),

		CriteriaPath:   getEnv("BUYER_CRITERIA_PATH", "./config/criteria.yaml"),
		CriteriaReload: time.Duration(getEnvInt("CRITERIA_RELOAD_DEBOUNCE_MS", 250)) * time.Millisecond,

		GatewayURL:     getEnv("GATEWAY_URL", ""),
		GatewayAPIKey:  getEnv("GATEWAY_API_KEY", ""),
		PageSearchURL:  getEnv("PAGE_SEARCH_URL", ""),
		BrowserURL:     getEnv("BROWSER_SEARCH_URL", ""),
		CuratedCSVPath: getEnv("CURATED_CSV_PATH", "./config/curated.csv"),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		ExportCSVPath:  getEnv("EXPORT_CSV_PATH", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		RunOnce:  getEnvBool("RUN_ONCE", false),
	}

	if cfg.ProviderTimeout < minProviderTimeout {
		cfg.ProviderTimeout = minProviderTimeout
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGES must be >= 1, got %d", c.MaxPages))
	}
	if c.MaxDetailCalls < 0 {
		errs = append(errs, fmt.Errorf("MAX_DETAIL_CALLS must be >= 0, got %d", c.MaxDetailCalls))
	}
	if c.DetailConcurrency < 1 {
		errs = append(errs, fmt.Errorf("INGESTION_DETAIL_CONCURRENCY must be >= 1, got %d", c.DetailConcurrency))
	}
	if c.SourceConcurrency < 1 {
		errs = append(errs, fmt.Errorf("INGESTION_SOURCE_CONCURRENCY must be >= 1, got %d", c.SourceConcurrency))
	}
	if c.IngestionInterval <= 0 {
		errs = append(errs, errors.New("INGESTION_INTERVAL_HOURS must be > 0"))
	}
	switch c.Store {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("STORE must be memory or postgres, got %q", c.Store))
	}
	switch c.SearchMode {
	case "buy", "rent":
	default:
		errs = append(errs, fmt.Errorf("SEARCH_MODE must be buy or rent, got %q", c.SearchMode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// PoolURL returns the connection string in URL form, as pgxpool expects.
func (c *Config) PoolURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
