// ABOUTME: Configuration loading and parsing for tollgate
// ABOUTME: Reads YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/lautrek/tollgate/internal/store"
)

// Environments accepted in app.environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// MinJWTSecretLength is the shortest jwt_secret accepted in production.
const MinJWTSecretLength = 32

// Config represents the complete tollgate configuration
type Config struct {
	App       AppConfig       `yaml:"app" toml:"app"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Billing   BillingConfig   `yaml:"billing" toml:"billing"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// AppConfig describes the deployment.
type AppConfig struct {
	Name        string `yaml:"name" toml:"name"`
	Environment string `yaml:"environment" toml:"environment"`
	// Debug exposes internal error text in JSON error bodies.
	Debug bool `yaml:"debug" toml:"debug"`
	// BaseURL is the external URL used in email verification links.
	// If not set, it is derived from server.http_addr.
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// CORSOrigins lists browser origins allowed to call the API with
	// credentials, e.g. "https://app.example.com". Empty disables CORS.
	CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // serve :443 with tailnet certs
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public HTTPS via Funnel
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	APIKeyPrefix  string `yaml:"api_key_prefix" toml:"api_key_prefix"`
	SessionCookie string `yaml:"session_cookie" toml:"session_cookie"`
	// JWTSecret signs email verification tokens.
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	// LoginRate is sustained login attempts per minute per client IP.
	LoginRate  float64 `yaml:"login_rate" toml:"login_rate"`
	LoginBurst int     `yaml:"login_burst" toml:"login_burst"`

	SessionPurgeInterval    time.Duration `yaml:"-" toml:"-"`
	SessionPurgeIntervalRaw string        `yaml:"session_purge_interval" toml:"session_purge_interval"`
}

// BillingConfig overrides the built-in quota table.
type BillingConfig struct {
	// MonthlyLimits maps tier name to operations per month; -1 is unlimited.
	MonthlyLimits map[string]int64 `yaml:"monthly_limits" toml:"monthly_limits"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultPath returns the path to the config file.
// Priority: TOLLGATE_CONFIG env var > XDG_CONFIG_HOME/tollgate/config.yaml > ~/.config/tollgate/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("TOLLGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tollgate", "config.yaml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tollgate"
	}
	if c.App.Environment == "" {
		c.App.Environment = EnvDevelopment
	}
	if c.Auth.APIKeyPrefix == "" {
		c.Auth.APIKeyPrefix = "lt_"
	}
	if c.Auth.SessionCookie == "" {
		c.Auth.SessionCookie = "tollgate_session"
	}
	if c.Auth.LoginRate == 0 {
		c.Auth.LoginRate = 5
	}
	if c.Auth.LoginBurst == 0 {
		c.Auth.LoginBurst = 5
	}
	if c.Auth.SessionPurgeInterval == 0 {
		c.Auth.SessionPurgeInterval = time.Hour
	}
	for i, origin := range c.Server.CORSOrigins {
		c.Server.CORSOrigins[i] = strings.TrimRight(strings.TrimSpace(origin), "/")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// IsProduction reports whether the deployment runs in production posture:
// secure cookies and no internal error text in responses.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// PublicURL returns the base URL for links sent to users.
func (c *Config) PublicURL() string {
	if c.App.BaseURL != "" {
		return strings.TrimRight(c.App.BaseURL, "/")
	}
	if c.Tailscale.Enabled {
		return "https://" + c.Tailscale.Hostname
	}
	return "http://" + c.Server.HTTPAddr
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("app.environment must be development, production or test, got %q", c.App.Environment)
	}

	if c.IsProduction() && c.App.Debug {
		return fmt.Errorf("app.debug must be false in production")
	}

	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	for _, origin := range c.Server.CORSOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("server.cors_origins: %w", err)
		}
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes in production", MinJWTSecretLength)
	}

	if c.Auth.LoginRate < 0 {
		return fmt.Errorf("auth.login_rate must be positive, got %v", c.Auth.LoginRate)
	}
	if c.Auth.LoginBurst < 0 {
		return fmt.Errorf("auth.login_burst must be positive, got %d", c.Auth.LoginBurst)
	}

	for name, limit := range c.Billing.MonthlyLimits {
		if _, err := store.ParseTier(name); err != nil {
			return fmt.Errorf("billing.monthly_limits: %w", err)
		}
		if limit < -1 {
			return fmt.Errorf("billing.monthly_limits.%s must be >= -1, got %d", name, limit)
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// validateOrigin accepts a bare scheme://host[:port] origin. A wildcard is
// refused because CORS responses allow credentials.
func validateOrigin(origin string) error {
	if origin == "*" {
		return fmt.Errorf("wildcard origin is not allowed with credentials")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid origin %q: want scheme://host[:port]", origin)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Auth.SessionPurgeIntervalRaw != "" {
		d, err := time.ParseDuration(cfg.Auth.SessionPurgeIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing session_purge_interval %q: %w", cfg.Auth.SessionPurgeIntervalRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("session_purge_interval must be positive, got %s", d)
		}
		cfg.Auth.SessionPurgeInterval = d
	}
	return nil
}
