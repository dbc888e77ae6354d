// Package config reads and writes the engine's TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for smlb.
type Config struct {
	BaseDir     string        `toml:"base_dir"`
	ArchiveRoot string        `toml:"archive_root"` // One sub-folder per plan
	LogDir      string        `toml:"log_dir"`
	Journal     JournalConfig `toml:"journal"`
}

// JournalConfig configures the operation journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type string `toml:"type"`           // "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite
}

// NewConfig creates a Config with default paths under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		ArchiveRoot: filepath.Join(baseDir, "archives"),
		LogDir:      filepath.Join(baseDir, "log"),
		Journal: JournalConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "journal.db"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
