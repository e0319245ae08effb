// ABOUTME: Configuration loading and parsing for idfront
// ABOUTME: Supports YAML files with environment variable expansion and defaults

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete idfront configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Routes  RoutesConfig  `yaml:"routes"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig locates the remote identity service.
type ServerConfig struct {
	// URL is the API base, e.g. "https://id.example.com/api".
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// StorageConfig holds durable client-side storage configuration.
type StorageConfig struct {
	// Path is the token database file.
	Path string `yaml:"path"`
}

// RoutesConfig holds the guard redirect targets.
type RoutesConfig struct {
	// Login is where the authentication guard sends unauthenticated users.
	Login string `yaml:"login"`
	// Home is the authenticated default the role guard sends
	// under-privileged users to. Never the login route.
	Home string `yaml:"home"`
}

// AuthConfig holds session engine policy.
type AuthConfig struct {
	// PasskeySecondFactor makes passkey login honor the account's
	// second-factor flag instead of treating a passkey as sufficient proof.
	PasskeySecondFactor bool `yaml:"passkey_second_factor"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// defaults are applied before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Server.TimeoutRaw != "" {
		cfg.Server.Timeout, err = time.ParseDuration(cfg.Server.TimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing server timeout %q: %w", cfg.Server.TimeoutRaw, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills optional fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Routes.Login == "" {
		c.Routes.Login = "/login"
	}
	if c.Routes.Home == "" {
		c.Routes.Home = "/dashboard"
	}
	if c.Server.TimeoutRaw == "" {
		c.Server.Timeout = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	parsed, err := url.Parse(c.Server.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("server.url must be an absolute URL: %q", c.Server.URL)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	if c.Routes.Login == c.Routes.Home {
		return fmt.Errorf("routes.login and routes.home must differ")
	}

	return nil
}
