// ABOUTME: Configuration loading and parsing for the parley server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete parley configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Agent    AgentConfig    `yaml:"agent"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds the paths for the two stores.
// The identity database (users, threads) and the checkpoint database
// (conversation turns) are deliberately separate files: they are joined
// only by the stringified thread id, never by a foreign key.
type DatabaseConfig struct {
	Path           string `yaml:"path"`
	CheckpointPath string `yaml:"checkpoint_path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenExpiryRaw string `yaml:"token_expiry"`
}

// AgentConfig holds agent runtime configuration
type AgentConfig struct {
	Provider      string        `yaml:"provider"` // "anthropic" or "openai"
	Model         string        `yaml:"model"`
	MaxToolRounds int           `yaml:"max_tool_rounds"`
	TurnTimeout   time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TurnTimeoutRaw string `yaml:"turn_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves fields unset.
const (
	DefaultTokenExpiry   = 8 * 24 * time.Hour
	DefaultTurnTimeout   = 2 * time.Minute
	DefaultMaxToolRounds = 8
	DefaultProvider      = "anthropic"
)

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

	cfg.applyDefaults()

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

// applyDefaults fills in defaults for optional fields left unset.
func (c *Config) applyDefaults() {
	if c.Auth.TokenExpiry == 0 {
		c.Auth.TokenExpiry = DefaultTokenExpiry
	}
	if c.Agent.TurnTimeout == 0 {
		c.Agent.TurnTimeout = DefaultTurnTimeout
	}
	if c.Agent.MaxToolRounds == 0 {
		c.Agent.MaxToolRounds = DefaultMaxToolRounds
	}
	if c.Agent.Provider == "" {
		c.Agent.Provider = DefaultProvider
	}
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
	if c.Database.CheckpointPath == "" {
		return fmt.Errorf("database.checkpoint_path is required")
	}
	if c.Database.CheckpointPath == c.Database.Path {
		return fmt.Errorf("database.checkpoint_path must differ from database.path")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Agent.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("agent.provider must be %q or %q, got %q", "anthropic", "openai", c.Agent.Provider)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.TokenExpiryRaw != "" {
		cfg.Auth.TokenExpiry, err = time.ParseDuration(cfg.Auth.TokenExpiryRaw)
		if err != nil {
			return fmt.Errorf("parsing token_expiry %q: %w", cfg.Auth.TokenExpiryRaw, err)
		}
	}

	if cfg.Agent.TurnTimeoutRaw != "" {
		cfg.Agent.TurnTimeout, err = time.ParseDuration(cfg.Agent.TurnTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing turn_timeout %q: %w", cfg.Agent.TurnTimeoutRaw, err)
		}
	}

	return nil
}
