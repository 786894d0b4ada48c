// Package config loads the service configuration from an optional YAML file
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/impromptu/logging"
)

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// Metrics exposes /metrics when true.
	Metrics bool `yaml:"metrics"`
}

// ModelConfig selects the planner backend.
type ModelConfig struct {
	// Provider is "anthropic" or "openai".
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	MaxRetries  int     `yaml:"max_retries"`
}

// AgentConfig tunes a conversation run.
type AgentConfig struct {
	MaxTurns         int           `yaml:"max_turns"`
	ModelTimeout     time.Duration `yaml:"model_timeout"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	MaxParallelTools int           `yaml:"max_parallel_tools"`
	EnforceToolOrder *bool         `yaml:"enforce_tool_order"`
	// ServerTimeZone is the label askTimeAndTimeZone reports when the client
	// sent no usable zone.
	ServerTimeZone string `yaml:"server_time_zone"`
	// InstructionFile replaces the built-in system policy. The file is a
	// text/template rendered with .RunID and .TimeZone.
	InstructionFile string `yaml:"instruction_file"`
}

// CalendarConfig selects the calendar provider.
type CalendarConfig struct {
	// Provider is "google" or "ics".
	Provider   string `yaml:"provider"`
	CalendarID string `yaml:"calendar_id"`
	ICSDir     string `yaml:"ics_dir"`
	// Endpoint overrides the Google Calendar API base URL.
	Endpoint string `yaml:"endpoint"`
}

// CredentialConfig configures the access token source. A static access
// token wins over OAuth refresh settings.
type CredentialConfig struct {
	AccessToken  string `yaml:"access_token"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig configures the run engine.
type EngineConfig struct {
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
	// MaxInputBytes rejects longer requests. 0 disables the check.
	MaxInputBytes int `yaml:"max_input_bytes"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Agent      AgentConfig      `yaml:"agent"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Credential CredentialConfig `yaml:"credential"`
	Logging    LoggingConfig    `yaml:"logging"`
	Engine     EngineConfig     `yaml:"engine"`
}

// Default returns the built-in configuration.
func Default() *Config {
	enforce := true
	return &Config{
		Server: ServerConfig{Listen: ":8080", Metrics: true},
		Model: ModelConfig{
			Provider:   "anthropic",
			MaxTokens:  1024,
			MaxRetries: 2,
		},
		Agent: AgentConfig{
			MaxTurns:         8,
			ModelTimeout:     60 * time.Second,
			ToolTimeout:      30 * time.Second,
			EnforceToolOrder: &enforce,
			ServerTimeZone:   "UTC",
		},
		Calendar: CalendarConfig{Provider: "google", CalendarID: "primary", ICSDir: "calendar"},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Engine:   EngineConfig{MaxConcurrentRuns: 10, MaxInputBytes: 8192},
	}
}

// Load reads path (if not empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. API keys are taken from the
// variable matching the configured model provider.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("IMPROMPTU_LISTEN", &c.Server.Listen)
	str("IMPROMPTU_LOG_LEVEL", &c.Logging.Level)
	str("IMPROMPTU_MODEL_PROVIDER", &c.Model.Provider)
	str("IMPROMPTU_MODEL", &c.Model.Model)
	str("IMPROMPTU_CALENDAR_PROVIDER", &c.Calendar.Provider)
	str("IMPROMPTU_ICS_DIR", &c.Calendar.ICSDir)

	switch strings.ToLower(strings.TrimSpace(c.Model.Provider)) {
	case "anthropic":
		str("ANTHROPIC_API_KEY", &c.Model.APIKey)
	case "openai":
		str("OPENAI_API_KEY", &c.Model.APIKey)
	}

	str("GOOGLE_ACCESS_TOKEN", &c.Credential.AccessToken)
	str("GOOGLE_CLIENT_ID", &c.Credential.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Credential.ClientSecret)
	str("GOOGLE_REFRESH_TOKEN", &c.Credential.RefreshToken)

	if v, ok := lookup("IMPROMPTU_MAX_CONCURRENT_RUNS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMPROMPTU_MAX_CONCURRENT_RUNS: %w", err)
		}
		c.Engine.MaxConcurrentRuns = n
	}
	return nil
}

func (c *Config) normalize() {
	c.Model.Provider = strings.ToLower(strings.TrimSpace(c.Model.Provider))
	c.Calendar.Provider = strings.ToLower(strings.TrimSpace(c.Calendar.Provider))
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
	if c.Agent.ServerTimeZone == "" {
		c.Agent.ServerTimeZone = "UTC"
	}
	if c.Agent.EnforceToolOrder == nil {
		enforce := true
		c.Agent.EnforceToolOrder = &enforce
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{"anthropic", "openai"}, c.Model.Provider) {
		errs = append(errs, fmt.Errorf("model.provider: unsupported %q", c.Model.Provider))
	}
	if !slices.Contains([]string{"google", "ics"}, c.Calendar.Provider) {
		errs = append(errs, fmt.Errorf("calendar.provider: unsupported %q", c.Calendar.Provider))
	}
	if c.Calendar.Provider == "ics" && c.Calendar.ICSDir == "" {
		errs = append(errs, errors.New("calendar.ics_dir: required for the ics provider"))
	}
	if c.Agent.MaxTurns < 1 {
		errs = append(errs, errors.New("agent.max_turns: must be at least 1"))
	}
	if c.Agent.ModelTimeout <= 0 {
		errs = append(errs, errors.New("agent.model_timeout: must be positive"))
	}
	if c.Agent.ToolTimeout <= 0 {
		errs = append(errs, errors.New("agent.tool_timeout: must be positive"))
	}
	if c.Agent.MaxParallelTools < 0 {
		errs = append(errs, errors.New("agent.max_parallel_tools: must not be negative"))
	}
	if c.Engine.MaxConcurrentRuns < 0 {
		errs = append(errs, errors.New("engine.max_concurrent_runs: must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if !slices.Contains([]string{"json", "text"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format: unsupported %q", c.Logging.Format))
	}
	if c.Credential.AccessToken == "" && c.Credential.RefreshToken != "" && c.Credential.ClientID == "" {
		errs = append(errs, errors.New("credential.client_id: required with a refresh token"))
	}

	return errors.Join(errs...)
}

// UsesOAuth reports whether tokens are obtained by refreshing.
func (c *Config) UsesOAuth() bool {
	return c.Credential.AccessToken == "" && c.Credential.RefreshToken != ""
}
