// Package config resolves maildeck configuration from flags and files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultPort is the web mirror's listen port when nothing else is set.
	DefaultPort = 8080

	// DefaultScanBudgetMS bounds how long a single folder scan may run.
	DefaultScanBudgetMS = 750

	// envConfigDir overrides the per-user config directory, mainly for tests.
	envConfigDir = "MAILDECK_CONFIG_DIR"

	// LocalConfigFile is the project-local config checked after the per-user one.
	LocalConfigFile = "maildeck.toml"
)

// Config holds the resolved settings for one maildeck run.
type Config struct {
	Maildir      string `toml:"maildir"`        // mail store root
	Port         int    `toml:"port"`           // web mirror listen port
	ScanBudgetMS int    `toml:"scan_budget_ms"` // folder scan ceiling in milliseconds
	Watch        bool   `toml:"watch"`          // live-refresh the selected folder

	// Source records which file the values came from, empty for built-in defaults.
	Source string `toml:"-"`
}

func defaults() *Config {
	return &Config{
		Maildir:      filepath.Join(homeDir(), "Mail"),
		Port:         DefaultPort,
		ScanBudgetMS: DefaultScanBudgetMS,
		Watch:        true,
	}
}

// Load resolves configuration with the precedence chain: explicit path,
// per-user config file, local config file, built-in defaults. An explicit
// path must exist; the other locations are optional.
func Load(explicit string) (*Config, error) {
	cfg := defaults()

	path := explicit
	if explicit == "" {
		path = firstExisting(UserConfigPath(), LocalConfigFile)
	} else if _, err := os.Stat(explicit); err != nil {
		return nil, fmt.Errorf("config file %s: %w", explicit, err)
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		cfg.Source = path
	}

	cfg.Maildir = expandPath(cfg.Maildir)
	return cfg, nil
}

// UserConfigPath returns the per-user config file location.
// Respects MAILDECK_CONFIG_DIR.
func UserConfigPath() string {
	if d := os.Getenv(envConfigDir); d != "" {
		return filepath.Join(d, "config.toml")
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "maildeck", "config.toml")
}

// LogPath returns the file the TUI logs to, keeping the raw terminal clean.
func LogPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = homeDir()
	}
	return filepath.Join(base, "maildeck", "maildeck.log")
}

// ScanBudget returns the folder scan ceiling as a duration.
func (c *Config) ScanBudget() time.Duration {
	ms := c.ScanBudgetMS
	if ms <= 0 {
		ms = DefaultScanBudgetMS
	}
	return time.Duration(ms) * time.Millisecond
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
