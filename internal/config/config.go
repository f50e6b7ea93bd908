package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Log            LogConfig            `yaml:"log"`
	Auth           AuthConfig           `yaml:"auth"`
	Catalog        CatalogConfig        `yaml:"catalog"`
	Rating         RatingConfig         `yaml:"rating"`
	Gemini         GeminiConfig         `yaml:"gemini"`
	Groq           GroqConfig           `yaml:"groq"`
	Provider       ProviderConfig       `yaml:"provider"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	HTTPRateLimit  HTTPRateLimitConfig  `yaml:"http_rate_limit"`
	Worker         WorkerConfig         `yaml:"worker"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// CatalogConfig configures the TMDB catalog upstream.
type CatalogConfig struct {
	BaseURL  string   `yaml:"base_url"`
	APIKey   string   `yaml:"-"`
	Language string   `yaml:"language"`
	Timeout  Duration `yaml:"timeout"`
}

// RatingConfig configures the OMDb rating upstream.
type RatingConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"-"`
	Timeout Duration `yaml:"timeout"`
}

// LimitConfig is a sliding-window request budget with an optional daily cap.
type LimitConfig struct {
	MaxRequests int      `yaml:"max_requests"`
	Window      Duration `yaml:"window"`
	MaxPerDay   int      `yaml:"max_per_day"` // 0 disables the daily cap
}

// GeminiConfig configures the Gemini generateContent client.
type GeminiConfig struct {
	BaseURL   string      `yaml:"base_url"`
	APIKey    string      `yaml:"-"`
	Model     string      `yaml:"model"`
	Timeout   Duration    `yaml:"timeout"`
	RateLimit LimitConfig `yaml:"rate_limit"`
}

// GroqConfig configures the Groq chat completions client.
type GroqConfig struct {
	BaseURL          string      `yaml:"base_url"`
	APIKey           string      `yaml:"-"`
	Model            string      `yaml:"model"`
	Timeout          Duration    `yaml:"timeout"`
	MaxAttempts      int         `yaml:"max_attempts"`
	RateLimitBackoff Duration    `yaml:"rate_limit_backoff"`
	ErrorBackoff     Duration    `yaml:"error_backoff"`
	MaxTokens        int         `yaml:"max_tokens"`
	RateLimit        LimitConfig `yaml:"rate_limit"`
}

// ProviderConfig selects the initial and fallback recommendation providers.
type ProviderConfig struct {
	Default  string `yaml:"default"`
	Fallback string `yaml:"fallback"`
}

// RecommendationConfig holds the pipeline's temperature and retry tunables.
type RecommendationConfig struct {
	StartTemperature           float64 `yaml:"start_temperature"`
	MaxTemperature             float64 `yaml:"max_temperature"`
	TemperatureStep            float64 `yaml:"temperature_step"`
	RetryTemperatureStep       float64 `yaml:"retry_temperature_step"`
	MaxNoResultsRetries        int     `yaml:"max_no_results_retries"`
	MaxHistoryCollisionRetries int     `yaml:"max_history_collision_retries"`
	HistoryCap                 int     `yaml:"history_cap"`
}

// HTTPRateLimitConfig sets the per-user quotas on the public endpoints.
type HTTPRateLimitConfig struct {
	Recommendation LimitConfig `yaml:"recommendation"`
	Search         LimitConfig `yaml:"search"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	ActivityPruneInterval Duration `yaml:"activity_prune_interval"`
	ActivityRetention     Duration `yaml:"activity_retention"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("VOYAGER_CONFIG_PATH", "config/voyager.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabaseConfig resolves only the database section, skipping secret
// validation. Used by commands that touch the database without serving.
func LoadDatabaseConfig() (DatabaseConfig, error) {
	cfg := newDefaults()
	if err := loadYAMLFile(cfg, getEnv("VOYAGER_CONFIG_PATH", "config/voyager.yaml")); err != nil {
		return DatabaseConfig{}, err
	}
	applyEnvOverrides(cfg)
	return cfg.Database, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(5 * time.Minute), // a recommendation can wait out several rate-limit windows
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/voyager.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			BaseURL:  "https://api.themoviedb.org",
			Language: "en-US",
			Timeout:  Duration(10 * time.Second),
		},
		Rating: RatingConfig{
			BaseURL: "http://www.omdbapi.com",
			Timeout: Duration(5 * time.Second),
		},
		Gemini: GeminiConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
			Timeout: Duration(60 * time.Second),
			RateLimit: LimitConfig{
				MaxRequests: 2,
				Window:      Duration(time.Minute),
			},
		},
		Groq: GroqConfig{
			BaseURL:          "https://api.groq.com/openai/v1/",
			Model:            "openai/gpt-oss-120b",
			Timeout:          Duration(60 * time.Second),
			MaxAttempts:      3,
			RateLimitBackoff: Duration(4 * time.Second),
			ErrorBackoff:     Duration(2 * time.Second),
			MaxTokens:        8192,
			RateLimit: LimitConfig{
				MaxRequests: 9,
				Window:      Duration(time.Minute),
				MaxPerDay:   1000,
			},
		},
		Provider: ProviderConfig{
			Default:  "groq",
			Fallback: "gemini",
		},
		Recommendation: RecommendationConfig{
			StartTemperature:           0.9,
			MaxTemperature:             2.0,
			TemperatureStep:            0.2,
			RetryTemperatureStep:       0.1,
			MaxNoResultsRetries:        4,
			MaxHistoryCollisionRetries: 3,
			HistoryCap:                 130,
		},
		HTTPRateLimit: HTTPRateLimitConfig{
			Recommendation: LimitConfig{MaxRequests: 20, Window: Duration(720 * time.Second)},
			Search:         LimitConfig{MaxRequests: 100, Window: Duration(5 * time.Second)},
		},
		Worker: WorkerConfig{
			ActivityPruneInterval: Duration(24 * time.Hour),
			ActivityRetention:     Duration(90 * 24 * time.Hour),
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty, parseable env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	envInt("VOYAGER_PORT", &cfg.Server.Port)
	envDuration("VOYAGER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("VOYAGER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("VOYAGER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	envString("VOYAGER_DB_PATH", &cfg.Database.Path)

	// Log
	envString("VOYAGER_LOG_LEVEL", &cfg.Log.Level)
	envString("VOYAGER_LOG_FORMAT", &cfg.Log.Format)

	// Secrets
	envString("VOYAGER_API_KEY", &cfg.Auth.APIKey)
	envString("TMDB_API_KEY", &cfg.Catalog.APIKey)
	envString("OMDB_API_KEY", &cfg.Rating.APIKey)
	envString("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	envString("GROQ_API_KEY", &cfg.Groq.APIKey)

	// Upstreams
	envString("VOYAGER_TMDB_BASE_URL", &cfg.Catalog.BaseURL)
	envString("VOYAGER_OMDB_BASE_URL", &cfg.Rating.BaseURL)
	envString("VOYAGER_GEMINI_BASE_URL", &cfg.Gemini.BaseURL)
	envString("VOYAGER_GEMINI_MODEL", &cfg.Gemini.Model)
	envString("VOYAGER_GROQ_BASE_URL", &cfg.Groq.BaseURL)
	envString("VOYAGER_GROQ_MODEL", &cfg.Groq.Model)

	// Provider
	envString("VOYAGER_PROVIDER", &cfg.Provider.Default)

	// Worker
	envDuration("VOYAGER_ACTIVITY_PRUNE_INTERVAL", &cfg.Worker.ActivityPruneInterval)
	envDuration("VOYAGER_ACTIVITY_RETENTION", &cfg.Worker.ActivityRetention)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks structural settings and required secrets.
// In dev mode (VOYAGER_DEV_MODE=true), secret validation is skipped.
func (c *Config) validate() error {
	if !knownProvider(c.Provider.Default) {
		return fmt.Errorf("provider.default: unknown provider %q", c.Provider.Default)
	}
	if !knownProvider(c.Provider.Fallback) {
		return fmt.Errorf("provider.fallback: unknown provider %q", c.Provider.Fallback)
	}

	r := c.Recommendation
	if r.TemperatureStep <= 0 {
		return errors.New("recommendation.temperature_step must be positive")
	}
	if r.StartTemperature > r.MaxTemperature {
		return errors.New("recommendation.start_temperature exceeds max_temperature")
	}
	if r.MaxNoResultsRetries < 0 || r.MaxHistoryCollisionRetries < 0 {
		return errors.New("recommendation retry budgets must not be negative")
	}

	for name, l := range map[string]LimitConfig{
		"gemini.rate_limit": c.Gemini.RateLimit,
		"groq.rate_limit":   c.Groq.RateLimit,
	} {
		if l.MaxRequests <= 0 || l.Window <= 0 {
			return fmt.Errorf("%s: max_requests and window must be positive", name)
		}
	}

	if c.Worker.ActivityPruneInterval <= 0 || c.Worker.ActivityRetention <= 0 {
		return errors.New("worker.activity_prune_interval and activity_retention must be positive")
	}

	if os.Getenv("VOYAGER_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("VOYAGER_API_KEY is required")
	}
	if c.Catalog.APIKey == "" {
		return errors.New("TMDB_API_KEY is required")
	}
	if c.providerKey(c.Provider.Default) == "" {
		return fmt.Errorf("%s_API_KEY is required for provider %q",
			strings.ToUpper(strings.TrimSpace(c.Provider.Default)), c.Provider.Default)
	}
	return nil
}

func (c *Config) providerKey(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini":
		return c.Gemini.APIKey
	case "groq":
		return c.Groq.APIKey
	}
	return ""
}

func knownProvider(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini", "groq":
		return true
	}
	return false
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
