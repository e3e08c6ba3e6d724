package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port           string
	TrustedProxies []string
	RateLimit      int // POST requests per client per minute, 0 disables

	// Remote API
	APIBaseURL string
	APITimeout time.Duration

	// Sessions
	SessionBackend        string
	SQLiteDBPath          string
	SessionCookieName     string
	SessionCookieSecure   bool
	SessionTTL            time.Duration
	SessionVerifyInterval time.Duration

	// Shared store
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Presentation
	CurrencySymbol   string
	CategoryReselect string

	// AMQP cache invalidation, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string

	// Google Sheets export, disabled when ExportSpreadsheetID is empty
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	ExportSpreadsheetID      string
	ExportSheetName          string

	LogLevel string
}

var (
	validBackends  = []string{"memory", "sqlite"}
	validReselects = []string{"first", "clear"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", []string{"127.0.0.1", "::1"}),
		RateLimit:      getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:3000/api"),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),

		SessionBackend:        getEnv("SESSION_BACKEND", "memory"),
		SQLiteDBPath:          getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		SessionCookieName:     getEnv("SESSION_COOKIE_NAME", "fintrack_session"),
		SessionCookieSecure:   getEnvBool("SESSION_COOKIE_SECURE", false),
		SessionTTL:            getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		SessionVerifyInterval: getEnvDuration("SESSION_VERIFY_INTERVAL", 5*time.Minute),

		CacheTTL:        getEnvDuration("CACHE_TTL", 30*time.Second),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),

		CurrencySymbol:   getEnv("CURRENCY_SYMBOL", "₹"),
		CategoryReselect: getEnv("CATEGORY_RESELECT", "first"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack.invalidations"),

		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		ExportSpreadsheetID:      getEnv("EXPORT_SPREADSHEET_ID", ""),
		ExportSheetName:          getEnv("EXPORT_SHEET_NAME", "Transactions"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// SheetsExportEnabled reports whether a spreadsheet export target is set.
func (c *Config) SheetsExportEnabled() bool {
	return c.ExportSpreadsheetID != ""
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimit))
	}

	if parsed, err := url.Parse(c.APIBaseURL); err != nil || c.APIBaseURL == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	}
	if c.APITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
	}

	if !contains(validBackends, c.SessionBackend) {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validBackends))
	}
	if c.SessionBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		errors = append(errors, "session cookie name cannot be empty")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionVerifyInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid session verify interval %v: must not be negative", c.SessionVerifyInterval))
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.CacheMaxEntries < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheMaxEntries))
	}

	if !contains(validReselects, c.CategoryReselect) {
		errors = append(errors, fmt.Sprintf("invalid category reselect policy '%s': must be one of %v", c.CategoryReselect, validReselects))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsExportEnabled() {
		if c.ExportSheetName == "" {
			errors = append(errors, "export sheet name is required when EXPORT_SPREADSHEET_ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ServiceAccountJSON returns the service account credentials, reading the
// file when no inline JSON is configured.
func (c *Config) ServiceAccountJSON() ([]byte, error) {
	if c.GoogleServiceAccountJSON != "" {
		return []byte(c.GoogleServiceAccountJSON), nil
	}
	b, err := os.ReadFile(c.GoogleServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
