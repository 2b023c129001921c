// Package config loads Concord's runtime configuration from an optional YAML
// file overlaid with environment variables. Environment variables always win,
// since that is how Concord is actually deployed; the YAML file exists for
// local development and documents the shape of the config in one place.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ProviderConfig holds the credentials and defaults for one LLM provider.
type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
}

// ProvidersConfig groups every configured LLM provider by name.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Grok      ProviderConfig `yaml:"grok"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	DeepSeek  ProviderConfig `yaml:"deepseek"`
}

// GoogleOAuthConfig holds the Google OAuth2 client used for login and for the
// Google Drive tool adapters.
type GoogleOAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
}

// AuthConfig configures JWT issuance and validation.
type AuthConfig struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenExpiry  time.Duration `yaml:"token_expiry"`
}

// ContextConfig holds the context settings. The context builder does not
// read them (its limits are fixed constants); MaxChars is passed to the
// session coordinator as its default context window, and MaxMessages is
// only validated.
type ContextConfig struct {
	MaxMessages int `yaml:"max_messages"`
	MaxChars    int `yaml:"max_chars"`
}

// ToolLoopConfig bounds the tool loop driver.
type ToolLoopConfig struct {
	MaxIterations    int           `yaml:"max_iterations"`
	CallDeadline     time.Duration `yaml:"call_deadline"`
	ApprovalRequired bool          `yaml:"approval_required_for_writes"`
}

// ServerConfig configures the HTTP listener and the metrics listener.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DatabaseConfig configures the Postgres connection pool. An empty URL means
// run against the in-memory stores, which is the default for local dev.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Tracing   TracingConfig `yaml:"tracing"`
}

// TracingConfig controls OpenTelemetry trace export.
type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Insecure       bool   `yaml:"insecure"`
}

// Config is the fully resolved configuration for one concordd process.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Google        GoogleOAuthConfig   `yaml:"google"`
	Auth          AuthConfig          `yaml:"auth"`
	Context       ContextConfig       `yaml:"context"`
	ToolLoop      ToolLoopConfig      `yaml:"tool_loop"`
	JudgeModel    string              `yaml:"judge_model"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns a Config with every field set to its documented default.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			MetricsAddr: ":9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Auth: AuthConfig{
			TokenExpiry: 24 * time.Hour,
		},
		Context: ContextConfig{
			MaxMessages: 10,
			MaxChars:    15000,
		},
		ToolLoop: ToolLoopConfig{
			MaxIterations: 10,
			CallDeadline:  30 * time.Second,
		},
		JudgeModel: "claude-opus-4",
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				ServiceName: "concordd",
			},
		},
	}
}

// Load resolves a Config starting from Default(), overlaying an optional YAML
// file at path (skipped entirely if path is empty or does not exist), then
// overlaying process environment variables, which always take precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := loadYAMLFile(path, cfg)
			if err != nil {
				return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
			}
			cfg = loaded
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnvOverlay(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate enforces the invariants concordd needs to start safely.
func (c Config) Validate() error {
	if c.Auth.JWTSecretKey == "" {
		return fmt.Errorf("config: JWT_SECRET_KEY is required")
	}
	if c.Context.MaxMessages <= 0 {
		return fmt.Errorf("config: context.max_messages must be positive")
	}
	if c.Context.MaxChars <= 0 {
		return fmt.Errorf("config: context.max_chars must be positive")
	}
	if c.ToolLoop.MaxIterations <= 0 {
		return fmt.Errorf("config: tool_loop.max_iterations must be positive")
	}
	hasProvider := c.Providers.OpenAI.APIKey != "" ||
		c.Providers.Grok.APIKey != "" ||
		c.Providers.Anthropic.APIKey != "" ||
		c.Providers.DeepSeek.APIKey != ""
	if !hasProvider {
		return fmt.Errorf("config: at least one provider API key must be set")
	}
	return nil
}

// applyEnvOverlay applies the documented environment variable table onto
// cfg, overwriting anything the YAML file set. Unset variables never zero
// out a value.
func applyEnvOverlay(cfg *Config) {
	str(&cfg.Database.URL, "DATABASE_URL")
	str(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	str(&cfg.Providers.Grok.APIKey, "GROK_API_KEY")
	str(&cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	str(&cfg.Providers.DeepSeek.APIKey, "DEEPSEEK_API_KEY")
	str(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	str(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	str(&cfg.Google.RedirectURI, "GOOGLE_REDIRECT_URI")
	str(&cfg.Auth.JWTSecretKey, "JWT_SECRET_KEY")
	intVal(&cfg.Context.MaxMessages, "CONTEXT_MAX_MESSAGES")
	intVal(&cfg.Context.MaxChars, "CONTEXT_MAX_CHARS")
	intVal(&cfg.ToolLoop.MaxIterations, "TOOL_LOOP_MAX_ITERS")
	secondsVal(&cfg.ToolLoop.CallDeadline, "TOOL_CALL_DEADLINE_SEC")
	boolVal(&cfg.ToolLoop.ApprovalRequired, "APPROVAL_REQUIRED_FOR_WRITES")
	str(&cfg.JudgeModel, "JUDGE_MODEL_ID")
	str(&cfg.Observability.LogLevel, "LOG_LEVEL")
	str(&cfg.Server.MetricsAddr, "METRICS_ADDR")
	str(&cfg.Observability.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	if cfg.Observability.Tracing.Endpoint != "" {
		cfg.Observability.Tracing.Enabled = true
	}
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func intVal(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func boolVal(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func secondsVal(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}
