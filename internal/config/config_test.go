package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// clearEnv blanks every variable the loader reads. Empty values never override.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"VOYAGER_CONFIG_PATH",
		"VOYAGER_DEV_MODE",
		"VOYAGER_PORT",
		"VOYAGER_READ_TIMEOUT",
		"VOYAGER_WRITE_TIMEOUT",
		"VOYAGER_SHUTDOWN_TIMEOUT",
		"VOYAGER_DB_PATH",
		"VOYAGER_LOG_LEVEL",
		"VOYAGER_LOG_FORMAT",
		"VOYAGER_API_KEY",
		"TMDB_API_KEY",
		"OMDB_API_KEY",
		"GEMINI_API_KEY",
		"GROQ_API_KEY",
		"VOYAGER_TMDB_BASE_URL",
		"VOYAGER_OMDB_BASE_URL",
		"VOYAGER_GEMINI_BASE_URL",
		"VOYAGER_GEMINI_MODEL",
		"VOYAGER_GROQ_BASE_URL",
		"VOYAGER_GROQ_MODEL",
		"VOYAGER_PROVIDER",
		"VOYAGER_ACTIVITY_PRUNE_INTERVAL",
		"VOYAGER_ACTIVITY_RETENTION",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}
	t.Setenv("VOYAGER_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
}

func setDevModeEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VOYAGER_DEV_MODE", "true")
}

func setProdEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VOYAGER_API_KEY", "test-api-key")
	t.Setenv("TMDB_API_KEY", "tmdb-key")
	t.Setenv("GROQ_API_KEY", "groq-key")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voyager.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != "data/voyager.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Gemini.RateLimit.MaxRequests != 2 || cfg.Gemini.RateLimit.Window.Std() != time.Minute {
		t.Errorf("Gemini.RateLimit = %+v, want 2 per minute", cfg.Gemini.RateLimit)
	}
	if cfg.Gemini.RateLimit.MaxPerDay != 0 {
		t.Errorf("Gemini.RateLimit.MaxPerDay = %d, want no daily cap", cfg.Gemini.RateLimit.MaxPerDay)
	}

	g := cfg.Groq
	if g.BaseURL != "https://api.groq.com/openai/v1/" || g.Model != "openai/gpt-oss-120b" {
		t.Errorf("Groq endpoint = %q %q", g.BaseURL, g.Model)
	}
	if g.RateLimit.MaxRequests != 9 || g.RateLimit.MaxPerDay != 1000 {
		t.Errorf("Groq.RateLimit = %+v, want 9/min and 1000/day", g.RateLimit)
	}
	if g.MaxAttempts != 3 || g.RateLimitBackoff.Std() != 4*time.Second || g.ErrorBackoff.Std() != 2*time.Second {
		t.Errorf("Groq retry = %d %v %v", g.MaxAttempts, g.RateLimitBackoff.Std(), g.ErrorBackoff.Std())
	}
	if g.MaxTokens != 8192 {
		t.Errorf("Groq.MaxTokens = %d, want 8192", g.MaxTokens)
	}

	if cfg.Provider.Default != "groq" || cfg.Provider.Fallback != "gemini" {
		t.Errorf("Provider = %+v", cfg.Provider)
	}

	r := cfg.Recommendation
	if r.StartTemperature != 0.9 || r.MaxTemperature != 2.0 || r.TemperatureStep != 0.2 || r.RetryTemperatureStep != 0.1 {
		t.Errorf("temperatures = %+v", r)
	}
	if r.MaxNoResultsRetries != 4 || r.MaxHistoryCollisionRetries != 3 || r.HistoryCap != 130 {
		t.Errorf("budgets = %+v", r)
	}

	if rl := cfg.HTTPRateLimit.Recommendation; rl.MaxRequests != 20 || rl.Window.Std() != 720*time.Second {
		t.Errorf("HTTPRateLimit.Recommendation = %+v", rl)
	}
	if rl := cfg.HTTPRateLimit.Search; rl.MaxRequests != 100 || rl.Window.Std() != 5*time.Second {
		t.Errorf("HTTPRateLimit.Search = %+v", rl)
	}
	if cfg.Catalog.BaseURL != "https://api.themoviedb.org" || cfg.Rating.BaseURL != "http://www.omdbapi.com" {
		t.Errorf("upstreams = %q %q", cfg.Catalog.BaseURL, cfg.Rating.BaseURL)
	}
}

func TestLoad_ValidationFailsWithoutSecrets(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		wantMsg string
	}{
		{"service key", "VOYAGER_API_KEY", "VOYAGER_API_KEY"},
		{"catalog key", "TMDB_API_KEY", "TMDB_API_KEY"},
		{"default provider key", "GROQ_API_KEY", "GROQ_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setProdEnv(t)
			t.Setenv(tt.unset, "")

			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil, want missing secret")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want mention of %s", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_ValidationPassesWithSecrets(t *testing.T) {
	clearEnv(t)
	setProdEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.APIKey != "test-api-key" || cfg.Groq.APIKey != "groq-key" || cfg.Catalog.APIKey != "tmdb-key" {
		t.Errorf("secrets not loaded: %+v", cfg)
	}
	if cfg.Rating.APIKey != "" {
		t.Errorf("Rating.APIKey = %q, want empty (optional)", cfg.Rating.APIKey)
	}
}

func TestLoad_GeminiDefaultNeedsGeminiKey(t *testing.T) {
	clearEnv(t)
	setProdEnv(t)
	t.Setenv("VOYAGER_PROVIDER", "gemini")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("Load() error = %v, want GEMINI_API_KEY required", err)
	}

	t.Setenv("GEMINI_API_KEY", "gem-key")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Default != "gemini" {
		t.Errorf("Provider.Default = %q", cfg.Provider.Default)
	}
}

func TestLoad_DevModeBypassesSecrets(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	if _, err := Load(); err != nil {
		t.Errorf("Load() in dev mode error = %v", err)
	}
}

func TestLoad_DevModeStillValidatesStructure(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown provider", "provider:\n  default: claude\n"},
		{"unknown fallback", "provider:\n  fallback: openai\n"},
		{"zero step", "recommendation:\n  temperature_step: 0\n"},
		{"start above max", "recommendation:\n  start_temperature: 2.5\n"},
		{"negative budget", "recommendation:\n  max_no_results_retries: -1\n"},
		{"zero window", "groq:\n  rate_limit:\n    window: 0s\n"},
		{"zero prune interval", "worker:\n  activity_prune_interval: 0s\n"},
		{"zero retention", "worker:\n  activity_retention: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setDevModeEnv(t)

			if _, err := LoadFromFile(writeConfig(t, tt.yaml)); err == nil {
				t.Error("LoadFromFile() error = nil, want validation failure")
			}
		})
	}
}

func TestLoadFromFile_ValidYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeConfig(t, `
server:
  port: 9999
  read_timeout: 60s
database:
  path: /yaml/voyager.db
provider:
  default: GEMINI
groq:
  max_attempts: 5
  rate_limit:
    max_requests: 30
    window: 1m
    max_per_day: 14400
recommendation:
  history_cap: 50
worker:
  activity_retention: 720h
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 9999 || cfg.Server.ReadTimeout.Std() != 60*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Database.Path != "/yaml/voyager.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Provider.Default != "GEMINI" {
		t.Errorf("Provider.Default = %q", cfg.Provider.Default)
	}
	if cfg.Groq.MaxAttempts != 5 || cfg.Groq.RateLimit.MaxRequests != 30 || cfg.Groq.RateLimit.MaxPerDay != 14400 {
		t.Errorf("Groq = %+v", cfg.Groq)
	}
	if cfg.Groq.Model != "openai/gpt-oss-120b" {
		t.Errorf("Groq.Model = %q, want default kept", cfg.Groq.Model)
	}
	if cfg.Recommendation.HistoryCap != 50 || cfg.Recommendation.MaxTemperature != 2.0 {
		t.Errorf("Recommendation = %+v", cfg.Recommendation)
	}
	if cfg.Worker.ActivityRetention.Std() != 720*time.Hour {
		t.Errorf("Worker.ActivityRetention = %v", cfg.Worker.ActivityRetention.Std())
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeConfig(t, `
server:
  port: 9000
log:
  level: warn
`)
	t.Setenv("VOYAGER_CONFIG_PATH", path)
	t.Setenv("VOYAGER_PORT", "8888")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888 (env override)", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn (from YAML)", cfg.Log.Level)
	}
}

func TestLoad_EnvVarMappings(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	t.Setenv("VOYAGER_DB_PATH", "/env/voyager.db")
	t.Setenv("VOYAGER_LOG_LEVEL", "debug")
	t.Setenv("VOYAGER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("VOYAGER_TMDB_BASE_URL", "http://tmdb.local")
	t.Setenv("VOYAGER_OMDB_BASE_URL", "http://omdb.local")
	t.Setenv("VOYAGER_GEMINI_BASE_URL", "http://gemini.local")
	t.Setenv("VOYAGER_GEMINI_MODEL", "gemini-pro")
	t.Setenv("VOYAGER_GROQ_BASE_URL", "http://groq.local/v1/")
	t.Setenv("VOYAGER_GROQ_MODEL", "llama")
	t.Setenv("VOYAGER_ACTIVITY_PRUNE_INTERVAL", "1h")
	t.Setenv("OMDB_API_KEY", "omdb-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := []struct {
		name string
		got  string
		want string
	}{
		{"Database.Path", cfg.Database.Path, "/env/voyager.db"},
		{"Log.Level", cfg.Log.Level, "debug"},
		{"Server.ShutdownTimeout", cfg.Server.ShutdownTimeout.Std().String(), "3s"},
		{"Catalog.BaseURL", cfg.Catalog.BaseURL, "http://tmdb.local"},
		{"Rating.BaseURL", cfg.Rating.BaseURL, "http://omdb.local"},
		{"Rating.APIKey", cfg.Rating.APIKey, "omdb-key"},
		{"Gemini.BaseURL", cfg.Gemini.BaseURL, "http://gemini.local"},
		{"Gemini.Model", cfg.Gemini.Model, "gemini-pro"},
		{"Groq.BaseURL", cfg.Groq.BaseURL, "http://groq.local/v1/"},
		{"Groq.Model", cfg.Groq.Model, "llama"},
		{"Worker.ActivityPruneInterval", cfg.Worker.ActivityPruneInterval.Std().String(), "1h0m0s"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestLoad_UnparseableEnvIsIgnored(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	t.Setenv("VOYAGER_PORT", "eighty")
	t.Setenv("VOYAGER_READ_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.ReadTimeout.Std() != 30*time.Second {
		t.Errorf("Server = %+v, want defaults", cfg.Server)
	}
}

func TestLoad_ZeroPruneIntervalFromEnv(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	t.Setenv("VOYAGER_ACTIVITY_PRUNE_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want rejection of a zero prune interval")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeConfig(t, "server:\n  port: not_a_number\n  this is invalid yaml [\n")
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() expected error for invalid YAML, got nil")
	}
}

func TestLoadFromFile_InvalidDuration(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeConfig(t, "groq:\n  error_backoff: a-while\n")
	_, err := LoadFromFile(path)
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("LoadFromFile() error = %v, want invalid duration", err)
	}
}

func TestLoadFromFile_MissingFileIsError(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFromFile() on missing file = nil error")
	}
}

func TestConfig_SecretsNotInYAML(t *testing.T) {
	cfg := newDefaults()
	cfg.Auth.APIKey = "service-secret"
	cfg.Catalog.APIKey = "tmdb-secret"
	cfg.Rating.APIKey = "omdb-secret"
	cfg.Gemini.APIKey = "gemini-secret"
	cfg.Groq.APIKey = "groq-secret"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}

	out := string(data)
	for _, secret := range []string{"service-secret", "tmdb-secret", "omdb-secret", "gemini-secret", "groq-secret"} {
		if strings.Contains(out, secret) {
			t.Errorf("YAML contains %s", secret)
		}
	}
	if !strings.Contains(out, "window: 1m0s") {
		t.Errorf("durations not marshalled as strings:\n%s", out)
	}
}

func TestLoadDatabaseConfig_SkipsSecretValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOYAGER_CONFIG_PATH", writeConfig(t, "database:\n  path: /yaml/voyager.db\n"))

	db, err := LoadDatabaseConfig()
	if err != nil {
		t.Fatalf("LoadDatabaseConfig() error = %v", err)
	}
	if db.Path != "/yaml/voyager.db" {
		t.Errorf("Path = %q", db.Path)
	}

	t.Setenv("VOYAGER_DB_PATH", "/env/voyager.db")
	db, err = LoadDatabaseConfig()
	if err != nil {
		t.Fatal(err)
	}
	if db.Path != "/env/voyager.db" {
		t.Errorf("Path = %q, want env override", db.Path)
	}
}
