package coshell

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the user's coshell configuration, loaded from a flat TOML file
// (§6: "key=value lines; unknown keys ignored"). Provider credentials are
// never read from this file — only from environment variables.
type Config struct {
	Verbosity int    `toml:"verbosity"` // 0, 1, or 2
	Provider  string `toml:"ai_provider"`
	Model     string `toml:"model"`
}

// DefaultConfig returns the built-in configuration used when no config file
// is present.
func DefaultConfig() *Config {
	return &Config{
		Verbosity: 0,
		Provider:  "openai-compatible",
		Model:     "gpt-4o-mini",
	}
}

// ConfigDir returns the config directory path.
// Resolution order: $COSHELL_CONFIG_DIR > $XDG_CONFIG_HOME/coshell > ~/.config/coshell
func ConfigDir() string {
	if dir := os.Getenv("COSHELL_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "coshell")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "coshell-config")
	}
	return filepath.Join(home, ".config", "coshell")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// HistoryPath returns the full path to the append-only command history file.
func HistoryPath() string {
	return filepath.Join(ConfigDir(), "history.log")
}

// PolicyPath returns the full path to the middleware's policy override file.
func PolicyPath() string {
	return filepath.Join(ConfigDir(), "policy.toml")
}

// LoadConfig loads config from disk, or returns defaults if not found.
func LoadConfig() (*Config, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Verbosity < 0 || cfg.Verbosity > 2 {
		cfg.Verbosity = 0
	}
	return cfg, nil
}

// SaveConfig writes cfg to the config file, creating the config directory
// if necessary. Used by the front end's control commands (§6).
func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(ConfigPath())
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ResolveProviderAPIKey returns the AI provider API key from the environment.
// Credentials are never read from the config file (§6).
func ResolveProviderAPIKey() string {
	return os.Getenv("COSHELL_API_KEY")
}

// ResolveProviderBaseURL returns the AI provider base URL, environment
// override taking priority over a built-in default.
func ResolveProviderBaseURL() string {
	if url := os.Getenv("COSHELL_API_BASE_URL"); url != "" {
		return url
	}
	return "https://api.openai.com/v1"
}
