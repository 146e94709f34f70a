package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.vsms/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// DIDs lists the account numbers in scope for conversation
	// listings and sync. Empty means none configured yet.
	DIDs []string `toml:"dids"`

	// PollIntervalSeconds controls how often the sync poller asks the
	// provider for new messages. Zero disables polling.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`

	// ShortcutCount is how many top conversations the shortcut
	// publisher exposes.
	ShortcutCount int `toml:"shortcut_count"`
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
