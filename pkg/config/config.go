package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Keys shared by viper, the environment and the cobra flags bound to them.
const (
	KeyBaseURL           = "BASE_URL"
	KeyUserAgent         = "USER_AGENT"
	KeyRequestTimeout    = "REQUEST_TIMEOUT"
	KeyMaxRetries        = "MAX_RETRIES"
	KeyBackoffInitial    = "BACKOFF_INITIAL"
	KeyPageDelay         = "PAGE_DELAY"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFile           = "LOG_FILE"
	KeyHTTPPort          = "PORT"
	KeyDatabaseURL       = "DATABASE_URL"
	KeyMigrationsPath    = "MIGRATIONS_PATH"
	KeyAPIKey            = "API_KEY"
	KeyRequestsPerSecond = "REQUESTS_PER_SECOND"
	KeyBurst             = "RATE_BURST"
	KeyExportPrefix      = "EXPORT_PREFIX"
	KeyOutputDir         = "OUTPUT_DIR"
)

// Config holds service configuration.
type Config struct {
	BaseURL        string
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	PageDelay      time.Duration

	LogLevel string
	LogFile  string

	HTTPPort          string
	DatabaseURL       string
	MigrationsPath    string
	APIKey            string
	RequestsPerSecond float64
	Burst             int

	ExportPrefix string
	OutputDir    string
}

// SetDefaults registers the default of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, "https://finance.naver.com/sise/field_submit.naver")
	v.SetDefault(KeyUserAgent, "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault(KeyRequestTimeout, 10*time.Second)
	v.SetDefault(KeyMaxRetries, 5)
	v.SetDefault(KeyBackoffInitial, time.Second)
	v.SetDefault(KeyPageDelay, 1500*time.Millisecond)
	v.SetDefault(KeyLogLevel, "production")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyHTTPPort, "8080")
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyMigrationsPath, "file://migrations")
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyRequestsPerSecond, 5.0)
	v.SetDefault(KeyBurst, 10)
	v.SetDefault(KeyExportPrefix, "stock_data")
	v.SetDefault(KeyOutputDir, ".")
}

// LoadConfig reads .env (if present) and the environment into v and returns
// the resulting Config. Values already set on v, such as bound flags, win.
func LoadConfig(v *viper.Viper) (Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := Config{
		BaseURL:           v.GetString(KeyBaseURL),
		UserAgent:         v.GetString(KeyUserAgent),
		RequestTimeout:    v.GetDuration(KeyRequestTimeout),
		MaxRetries:        v.GetInt(KeyMaxRetries),
		BackoffInitial:    v.GetDuration(KeyBackoffInitial),
		PageDelay:         v.GetDuration(KeyPageDelay),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFile:           v.GetString(KeyLogFile),
		HTTPPort:          v.GetString(KeyHTTPPort),
		DatabaseURL:       v.GetString(KeyDatabaseURL),
		MigrationsPath:    v.GetString(KeyMigrationsPath),
		APIKey:            v.GetString(KeyAPIKey),
		RequestsPerSecond: v.GetFloat64(KeyRequestsPerSecond),
		Burst:             v.GetInt(KeyBurst),
		ExportPrefix:      v.GetString(KeyExportPrefix),
		OutputDir:         v.GetString(KeyOutputDir),
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the crawler cannot run with.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%s must not be empty", KeyBaseURL)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%s must be positive, got %s", KeyRequestTimeout, c.RequestTimeout)
	case c.MaxRetries < 0:
		return fmt.Errorf("%s must not be negative, got %d", KeyMaxRetries, c.MaxRetries)
	case c.BackoffInitial <= 0:
		return fmt.Errorf("%s must be positive, got %s", KeyBackoffInitial, c.BackoffInitial)
	case c.PageDelay < 0:
		return fmt.Errorf("%s must not be negative, got %s", KeyPageDelay, c.PageDelay)
	case c.RequestsPerSecond <= 0:
		return fmt.Errorf("%s must be positive, got %v", KeyRequestsPerSecond, c.RequestsPerSecond)
	}
	return nil
}

// ListenAddr is the HTTP listen address for the port setting.
func (c Config) ListenAddr() string {
	if strings.Contains(c.HTTPPort, ":") {
		return c.HTTPPort
	}
	return ":" + c.HTTPPort
}
