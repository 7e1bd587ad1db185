package cliconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// Config holds CLI configuration for rollnotify.
type Config struct {
	AccessToken string
	ReadToken   string

	Environment string
	Endpoint    string
	CodeVersion string
	Host        string

	Timeout time.Duration
	Verbose bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Endpoint: rollnotify.DefaultEndpoint,
		Timeout:  10 * time.Second,
	}
}

// Validate checks the configuration and normalizes the endpoint. Tokens
// are checked by the commands that need them.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		c.Endpoint = rollnotify.DefaultEndpoint
	}
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http(s) URL, got %q", c.Endpoint)
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// WriteToken returns the token for reporting and creating deploys.
func (c *Config) WriteToken() (string, error) {
	if c.AccessToken == "" {
		return "", fmt.Errorf("access-token is required (flag, ROLLNOTIFY_ACCESS_TOKEN or config file)")
	}
	return c.AccessToken, nil
}

// ReadOnlyToken returns the token for reading deploys, falling back to the
// access token.
func (c *Config) ReadOnlyToken() (string, error) {
	if c.ReadToken != "" {
		return c.ReadToken, nil
	}
	if c.AccessToken != "" {
		return c.AccessToken, nil
	}
	return "", fmt.Errorf("read-token is required (flag, ROLLNOTIFY_READ_TOKEN or config file)")
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.AccessToken != "" {
		c.AccessToken = "*****"
	}
	if c.ReadToken != "" {
		c.ReadToken = "*****"
	}
	return c
}

// configSetter applies values only for flags that were not set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString accepts "true" and "1" as true.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// ApplyEnvConfig applies ROLLNOTIFY_* variables, respecting changed flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("access-token", os.Getenv("ROLLNOTIFY_ACCESS_TOKEN"), &cfg.AccessToken)
	s.setString("read-token", os.Getenv("ROLLNOTIFY_READ_TOKEN"), &cfg.ReadToken)
	s.setString("environment", os.Getenv("ROLLNOTIFY_ENVIRONMENT"), &cfg.Environment)
	s.setString("endpoint", os.Getenv("ROLLNOTIFY_ENDPOINT"), &cfg.Endpoint)
	s.setString("code-version", os.Getenv("ROLLNOTIFY_CODE_VERSION"), &cfg.CodeVersion)
	s.setString("host", os.Getenv("ROLLNOTIFY_HOST"), &cfg.Host)

	if err := s.setDuration("timeout", os.Getenv("ROLLNOTIFY_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}
	s.setBoolFromString("verbose", os.Getenv("ROLLNOTIFY_VERBOSE"), &cfg.Verbose)
	return nil
}

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

// Logger returns the CLI logger.
func Logger() zerolog.Logger {
	return logger
}
