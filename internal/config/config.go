package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
	"github.com/mobilepoint/comparator-stoc-api/internal/services/odoo"
	"github.com/mobilepoint/comparator-stoc-api/internal/services/smartbill"
	"github.com/mobilepoint/comparator-stoc-api/internal/services/woocommerce"
	"github.com/mobilepoint/comparator-stoc-api/internal/snapshot"
)

// Ledger providers
const (
	LedgerSmartBill = "smartbill"
	LedgerOdoo      = "odoo"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Log      LogConfig
	Catalog  woocommerce.Config
	Ledger   LedgerConfig
	Snapshot snapshot.Config
	Rules    reconcile.Rules
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool // silences gorm SQL logging during migrations

	EmbeddedDataPath string
	EmbeddedPort     int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          string
	JWTSecret     string // empty disables the bearer guard
	MetricsPrefix string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// LogConfig selects level and output format
type LogConfig struct {
	Level  string
	Format string // text or json
}

// LedgerConfig selects the ledger provider and holds both providers' settings
type LedgerConfig struct {
	Provider  string
	SmartBill smartbill.Config
	Odoo      odoo.Config
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	httpTimeout := getDurationEnv("HTTP_TIMEOUT", 30*time.Second)

	cfg := &Config{
		Database: DatabaseConfig{
			Host:             getEnv("PG_HOST", "localhost"),
			Port:             getEnv("PG_PORT", "5432"),
			Username:         getEnv("PG_USERNAME", "postgres"),
			Password:         os.Getenv("PG_PASSWORD"),
			Database:         getEnv("PG_DATABASE", "comparator_stoc"),
			Alter:            getBoolEnv("DB_ALTER", false),
			EmbeddedDataPath: getEnv("EMBEDDED_PG_PATH", "./db_data"),
			EmbeddedPort:     getIntEnv("EMBEDDED_PG_PORT", 5433),
		},
		Server: ServerConfig{
			Port:          getEnv("PORT", "3001"),
			JWTSecret:     os.Getenv("JWT_SECRET"),
			MetricsPrefix: getEnv("METRICS_PREFIX", "stockrecon"),
			ReadTimeout:   getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			// full syncs of large catalogs run inside the request
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Catalog: woocommerce.Config{
			URL:            os.Getenv("WOO_URL"),
			ConsumerKey:    os.Getenv("WOO_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("WOO_CONSUMER_SECRET"),
			PageSize:       getIntEnv("WOO_PAGE_SIZE", 100),
			Timeout:        httpTimeout,
			PageDelay:      getDurationEnv("WOO_PAGE_DELAY", 100*time.Millisecond),
			VariationDelay: getDurationEnv("WOO_VARIATION_DELAY", 50*time.Millisecond),
			FailureBudget:  getIntEnv("WOO_FAILURE_BUDGET", 3),
			MaxPages:       getIntEnv("WOO_MAX_PAGES", 10000),
		},
		Ledger: LedgerConfig{
			Provider: strings.ToLower(getEnv("LEDGER_PROVIDER", LedgerSmartBill)),
			SmartBill: smartbill.Config{
				URL:           os.Getenv("SMARTBILL_URL"),
				Email:         os.Getenv("SMARTBILL_EMAIL"),
				Token:         os.Getenv("SMARTBILL_TOKEN"),
				CIF:           os.Getenv("SMARTBILL_CIF"),
				WarehouseName: os.Getenv("SMARTBILL_WAREHOUSE"),
				Timeout:       httpTimeout,
			},
			Odoo: odoo.Config{
				URL:           os.Getenv("ODOO_URL"),
				Database:      os.Getenv("ODOO_DB"),
				Username:      os.Getenv("ODOO_USER"),
				Password:      os.Getenv("ODOO_PASSWORD"),
				WarehouseName: os.Getenv("ODOO_WAREHOUSE"),
				Timeout:       httpTimeout,
			},
		},
		Snapshot: snapshot.Config{
			BatchSize:    getIntEnv("SNAPSHOT_BATCH_SIZE", snapshot.DefaultBatchSize),
			ReadPageSize: getIntEnv("SNAPSHOT_READ_PAGE_SIZE", snapshot.DefaultReadPageSize),
			Timeout:      getDurationEnv("SNAPSHOT_TIMEOUT", snapshot.DefaultTimeout),
		},
		Rules: reconcile.Rules{
			MissingFromLedger: reconcile.MissingFromLedgerRule{
				Enabled:           getBoolEnv("MISSING_FROM_LEDGER_ENABLED", true),
				Severity:          reconcile.Severity(getIntEnv("MISSING_FROM_LEDGER_SEVERITY", int(reconcile.SeverityVerification))),
				RequireLedgerData: getBoolEnv("MISSING_FROM_LEDGER_REQUIRE_LEDGER", true),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Catalog.URL) == "" {
		return fmt.Errorf("WOO_URL is required")
	}
	switch c.Ledger.Provider {
	case LedgerSmartBill, LedgerOdoo:
	default:
		return fmt.Errorf("LEDGER_PROVIDER must be %q or %q, got %q", LedgerSmartBill, LedgerOdoo, c.Ledger.Provider)
	}
	if !c.Rules.MissingFromLedger.Severity.Valid() {
		return fmt.Errorf("MISSING_FROM_LEDGER_SEVERITY must be between 1 and 4, got %d", c.Rules.MissingFromLedger.Severity)
	}
	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("250ms") or a bare number of milliseconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
