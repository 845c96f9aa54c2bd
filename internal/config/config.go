// ABOUTME: Configuration loading and parsing for agentchat
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/agentchat/internal/transport"
)

// Config represents the complete agentchat configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Model    ModelConfig    `yaml:"model"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Context  ContextConfig  `yaml:"context"`
	Profiles ProfilesConfig `yaml:"profiles"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds session token configuration
type SessionConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// ModelConfig holds completion transport configuration. A missing API key
// is deliberately not a validation error here: the application starts and
// surfaces the misconfiguration through the chat service instead.
type ModelConfig struct {
	Mode           string `yaml:"mode"` // "openai" or "custom"
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	CustomURL      string `yaml:"custom_url"`
	DeploymentName string `yaml:"deployment_name"`
	APIVersion     string `yaml:"api_version"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
}

// DispatchConfig holds retry and timeout policy for completion calls
type DispatchConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"-"`
	BackoffBase time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw     string `yaml:"timeout"`
	BackoffBaseRaw string `yaml:"backoff_base"`
}

// ContextConfig holds context window budget configuration
type ContextConfig struct {
	TokenCeiling int `yaml:"token_ceiling"`
	MaxMessages  int `yaml:"max_messages"`
}

// ProfilesConfig holds agent profile pack configuration
type ProfilesConfig struct {
	PacksDir string `yaml:"packs_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TransportMode maps the configured mode onto the transport's mode
// constants, defaulting to OpenAI.
func (m ModelConfig) TransportMode() string {
	if m.Mode == "custom" {
		return transport.ModeCustom
	}
	return transport.ModeOpenAI
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Session.JWTSecret == "" {
		return fmt.Errorf("session.jwt_secret is required")
	}
	switch c.Model.Mode {
	case "", "openai", "custom":
	default:
		return fmt.Errorf("model.mode must be \"openai\" or \"custom\", got %q", c.Model.Mode)
	}
	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must not be negative")
	}
	if c.Context.TokenCeiling < 0 || c.Context.MaxMessages < 0 {
		return fmt.Errorf("context limits must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.TokenTTLRaw != "" {
		cfg.Session.TokenTTL, err = time.ParseDuration(cfg.Session.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Session.TokenTTLRaw, err)
		}
	}

	if cfg.Dispatch.TimeoutRaw != "" {
		cfg.Dispatch.Timeout, err = time.ParseDuration(cfg.Dispatch.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Dispatch.TimeoutRaw, err)
		}
	}

	if cfg.Dispatch.BackoffBaseRaw != "" {
		cfg.Dispatch.BackoffBase, err = time.ParseDuration(cfg.Dispatch.BackoffBaseRaw)
		if err != nil {
			return fmt.Errorf("parsing backoff_base %q: %w", cfg.Dispatch.BackoffBaseRaw, err)
		}
	}

	return nil
}
