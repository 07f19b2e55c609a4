// config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxPageSize bounds the page size requested from the marketplace.
const MaxPageSize = 3000

// Config is the full runtime configuration, read once at startup.
type Config struct {
	Port           string
	AllowedOrigins []string
	ServiceToken   string

	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxLife  time.Duration

	Marketplace MarketplaceConfig
	Sync        SyncConfig
	Archive     ArchiveConfig

	PartnersFile string
	LogLevel     string
	LogFormat    string
}

// MarketplaceConfig describes how to reach the external marketplace API.
type MarketplaceConfig struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Username     string
	Password     string
	LoginPath    string
	Timeout      time.Duration

	CustomersPath    string
	TransactionsPath string
	UsagePath        string
	UsageMethod      string
}

// SyncConfig holds run coordinator limits and scheduling.
type SyncConfig struct {
	PageSize  int
	MaxPages  int
	FullStart time.Time
	Interval  time.Duration // 0 disables the scheduler
}

// ArchiveConfig configures the optional raw page archive on R2/S3.
type ArchiveConfig struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Endpoint        string
}

// Enabled reports whether raw pages should be archived.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != "" && a.AccessKeyID != "" && a.AccessKeySecret != ""
}

// Load reads .env (if present) and the environment.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	fullStart, err := time.Parse(time.DateOnly, envString("SYNC_FULL_START", "2020-01-01"))
	if err != nil {
		return nil, dotenv, errors.New("SYNC_FULL_START must be YYYY-MM-DD")
	}

	cfg := &Config{
		Port:           envString("PORT", "5200"),
		AllowedOrigins: splitList(envString("ALLOWED_ORIGINS", "http://localhost:3000")),
		ServiceToken:   os.Getenv("SYNC_SERVICE_TOKEN"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns: envInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLife:  envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		Marketplace: MarketplaceConfig{
			BaseURL:          strings.TrimRight(os.Getenv("MARKETPLACE_BASE_URL"), "/"),
			APIKey:           os.Getenv("MARKETPLACE_API_KEY"),
			APIKeyHeader:     envString("MARKETPLACE_API_KEY_HEADER", "X-Api-Key"),
			Username:         os.Getenv("MARKETPLACE_USERNAME"),
			Password:         os.Getenv("MARKETPLACE_PASSWORD"),
			LoginPath:        envString("MARKETPLACE_LOGIN_PATH", "/api/v1/auth/login"),
			Timeout:          envDuration("MARKETPLACE_TIMEOUT", 60*time.Second),
			CustomersPath:    envString("MARKETPLACE_CUSTOMERS_PATH", "/api/v1/customer/list"),
			TransactionsPath: envString("MARKETPLACE_TRANSACTIONS_PATH", "/api/v1/transaction/list"),
			UsagePath:        envString("MARKETPLACE_USAGE_PATH", "/api/v1/credit/history"),
			UsageMethod:      strings.ToUpper(envString("MARKETPLACE_USAGE_METHOD", "GET")),
		},
		Sync: SyncConfig{
			PageSize:  ClampPageSize(envInt("SYNC_PAGE_SIZE", 500)),
			MaxPages:  envInt("SYNC_MAX_PAGES", 1000),
			FullStart: fullStart,
			Interval:  envDuration("SYNC_INTERVAL", 0),
		},
		Archive: ArchiveConfig{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			Endpoint:        os.Getenv("R2_ENDPOINT"),
		},

		PartnersFile: os.Getenv("PARTNERS_FILE"),
		LogLevel:     envString("LOG_LEVEL", "info"),
		LogFormat:    envString("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, dotenv, err
	}
	return cfg, dotenv, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.Marketplace.BaseURL == "" {
		errs = append(errs, errors.New("MARKETPLACE_BASE_URL environment variable not set"))
	}
	if c.ServiceToken == "" {
		errs = append(errs, errors.New("SYNC_SERVICE_TOKEN environment variable not set"))
	}
	if c.Marketplace.APIKey == "" && c.Marketplace.Username == "" {
		errs = append(errs, errors.New("either MARKETPLACE_API_KEY or MARKETPLACE_USERNAME must be set"))
	}
	if c.Sync.MaxPages <= 0 {
		errs = append(errs, errors.New("SYNC_MAX_PAGES must be positive"))
	}
	return errors.Join(errs...)
}

// ClampPageSize bounds n to [1, MaxPageSize].
func ClampPageSize(n int) int {
	if n <= 0 {
		return 1
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
