package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML-friendly types.
type FileConfig struct {
	AccessToken string `toml:"access_token"`
	ReadToken   string `toml:"read_token"`
	Environment string `toml:"environment"`
	Endpoint    string `toml:"endpoint"`
	CodeVersion string `toml:"code_version"`
	Host        string `toml:"host"`
	Timeout     string `toml:"timeout"`
	Verbose     *bool  `toml:"verbose"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.rollnotify/config.toml, or "" without a home
// directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".rollnotify", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies file values, respecting changed flags.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("access-token", fc.AccessToken, &cfg.AccessToken)
	s.setString("read-token", fc.ReadToken, &cfg.ReadToken)
	s.setString("environment", fc.Environment, &cfg.Environment)
	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("code-version", fc.CodeVersion, &cfg.CodeVersion)
	s.setString("host", fc.Host, &cfg.Host)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	s.setBool("verbose", fc.Verbose, &cfg.Verbose)
	return nil
}

// FileExists reports whether a file exists at p.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
