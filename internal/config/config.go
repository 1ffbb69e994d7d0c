// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.clio/config.yaml)
//  3. Default values
//
// Security: sensitive values (auth secret, credentials) are masked in
// MarshalJSON, so a logged Config never leaks them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingDatabaseURL indicates DATABASE_URL is not set.
	ErrMissingDatabaseURL = errors.New("missing database URL")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAuthSecret indicates the auth signing secret is not set.
	ErrMissingAuthSecret = errors.New("missing auth secret")

	// ErrWeakAuthSecret indicates the auth signing secret is too short.
	ErrWeakAuthSecret = errors.New("auth secret must be at least 32 bytes")

	// ErrMissingRetrievalEndpoint indicates the retrieval endpoint is not set.
	ErrMissingRetrievalEndpoint = errors.New("missing retrieval endpoint")

	// ErrInvalidRateBurst indicates the rate limit burst is out of range.
	ErrInvalidRateBurst = errors.New("invalid rate burst")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// minAuthSecretLen matches the HMAC-SHA256 key guidance.
const minAuthSecretLen = 32

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// HTTP server
	Addr string `mapstructure:"addr" json:"addr"`

	// AI provider configuration. Model names come from the catalog; the
	// provider decides which genkit plugin serves them.
	Provider string `mapstructure:"provider" json:"provider"` // "openai" (default), "googleai"

	// Storage
	DatabaseURL string `mapstructure:"database_url" json:"database_url"` // SENSITIVE: masked in MarshalJSON

	// Retrieval backend (Vertex AI Search)
	RetrievalEndpoint        string `mapstructure:"retrieval_endpoint" json:"retrieval_endpoint"`
	RetrievalSession         string `mapstructure:"retrieval_session" json:"retrieval_session"`
	RetrievalCredentials     string `mapstructure:"retrieval_credentials" json:"retrieval_credentials"` // SENSITIVE: masked in MarshalJSON
	RetrievalCredentialsFile string `mapstructure:"retrieval_credentials_file" json:"retrieval_credentials_file"`
	RetrievalPageSize        int    `mapstructure:"retrieval_page_size" json:"retrieval_page_size"`

	// Security
	AuthSecret  string   `mapstructure:"auth_secret" json:"auth_secret"` // SENSITIVE: masked in MarshalJSON
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Dev relaxes transport hardening (no HSTS).
	Dev bool `mapstructure:"dev" json:"dev"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".clio")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env cover it.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("addr", ":8080")
	viper.SetDefault("provider", ProviderOpenAI)
	viper.SetDefault("retrieval_page_size", 10)
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", true)
	viper.SetDefault("dev", false)
}

// bindEnvVariables binds environment variables explicitly. Secrets only
// come from the environment, never from the config file on disk.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "CLIO_ADDR")
	mustBind("provider", "CLIO_PROVIDER")
	mustBind("database_url", "DATABASE_URL")
	mustBind("retrieval_endpoint", "CLIO_RETRIEVAL_ENDPOINT")
	mustBind("retrieval_session", "CLIO_RETRIEVAL_SESSION")
	mustBind("retrieval_credentials", "GOOGLE_SERVICE_ACCOUNT_KEY_BASE64")
	mustBind("retrieval_credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	mustBind("auth_secret", "CLIO_AUTH_SECRET")
	mustBind("cors_origins", "CLIO_CORS_ORIGINS")
	mustBind("trust_proxy", "CLIO_TRUST_PROXY")
	mustBind("log_level", "CLIO_LOG_LEVEL")
	mustBind("dev", "CLIO_DEV")

	// NOTE: OPENAI_API_KEY is read directly by the genkit OpenAI plugin,
	// GEMINI_API_KEY by the Google AI plugin. Neither goes through viper.
}

// Validate checks the configuration for completeness and range errors.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (supported: openai, googleai)", ErrInvalidProvider, c.Provider)
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: set DATABASE_URL", ErrMissingDatabaseURL)
	}

	if c.RetrievalEndpoint == "" {
		return fmt.Errorf("%w: set CLIO_RETRIEVAL_ENDPOINT", ErrMissingRetrievalEndpoint)
	}

	if c.AuthSecret == "" {
		return fmt.Errorf("%w: set CLIO_AUTH_SECRET", ErrMissingAuthSecret)
	}
	if len(c.AuthSecret) < minAuthSecretLen {
		return fmt.Errorf("%w: got %d bytes", ErrWeakAuthSecret, len(c.AuthSecret))
	}

	if c.RateBurst < 0 || c.RateBurst > 100000 {
		return fmt.Errorf("%w: %d", ErrInvalidRateBurst, c.RateBurst)
	}

	return nil
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 bytes or
// fewer are fully masked; longer ones keep the first and last 2 characters
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	a.RetrievalCredentials = maskSecret(a.RetrievalCredentials)
	a.AuthSecret = maskSecret(a.AuthSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
