package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds terminal configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	BackendURL         string
	BackendAPIKey      string
	BackendTimeout     time.Duration
	CORSAllowedOrigins []string

	Currency       string
	CurrencySymbol string
	TaxBps         int
	InvoiceDueDays int

	OperatorID   string
	OperatorName string
	TerminalID   string
	StoreID      string

	VerifyInterval    time.Duration
	VerifyMaxAttempts int

	CatalogRefresh time.Duration
	PrefsPath      string

	LogLevel       string
	LogFormat      string
	TracingEnabled bool
	OTLPEndpoint   string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		BackendURL:         strings.TrimRight(strings.TrimSpace(k.String("BACKEND_URL")), "/"),
		BackendAPIKey:      strings.TrimSpace(k.String("BACKEND_API_KEY")),
		BackendTimeout:     parseDuration(k.String("BACKEND_TIMEOUT"), "10s"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		Currency:           valueOrDefault(k.String("CURRENCY"), "ZMW"),
		CurrencySymbol:     valueOrDefault(k.String("CURRENCY_SYMBOL"), "K"),
		TaxBps:             intOrDefault(k, "TAX_BPS", 0),
		InvoiceDueDays:     intOrDefault(k, "INVOICE_DUE_DAYS", 30),
		OperatorID:         valueOrDefault(strings.TrimSpace(k.String("OPERATOR_ID")), "local"),
		OperatorName:       valueOrDefault(strings.TrimSpace(k.String("OPERATOR_NAME")), "Operator"),
		TerminalID:         valueOrDefault(strings.TrimSpace(k.String("TERMINAL_ID")), "terminal-1"),
		StoreID:            valueOrDefault(strings.TrimSpace(k.String("STORE_ID")), "store-1"),
		VerifyInterval:     parseDuration(k.String("VERIFY_INTERVAL"), "3s"),
		VerifyMaxAttempts:  intOrDefault(k, "VERIFY_MAX_ATTEMPTS", 20),
		CatalogRefresh:     parseDuration(k.String("CATALOG_REFRESH"), "5m"),
		PrefsPath:          valueOrDefault(k.String("PREFS_PATH"), "terminal-prefs.json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		TracingEnabled:     parseBool(k.String("TRACING_ENABLED")),
		OTLPEndpoint:       strings.TrimSpace(k.String("OTLP_ENDPOINT")),
	}

	if cfg.BackendURL == "" {
		return nil, errors.New("BACKEND_URL is required")
	}
	if cfg.TaxBps < 0 || cfg.TaxBps > 10000 {
		return nil, fmt.Errorf("TAX_BPS out of range: %d", cfg.TaxBps)
	}
	if cfg.VerifyMaxAttempts < 1 {
		return nil, fmt.Errorf("VERIFY_MAX_ATTEMPTS must be positive: %d", cfg.VerifyMaxAttempts)
	}
	if cfg.InvoiceDueDays < 1 {
		return nil, fmt.Errorf("INVOICE_DUE_DAYS must be positive: %d", cfg.InvoiceDueDays)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(k *koanf.Koanf, key string, fallback int) int {
	if strings.TrimSpace(k.String(key)) == "" {
		return fallback
	}
	return k.Int(key)
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
