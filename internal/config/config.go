package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

const (
	MemoryBackendType = "memory"
	DiskBackendType   = "disk"
	SQLiteBackendType = "sqlite"
)

type Config struct {
	Address        string              `toml:"address"`
	Port           int                 `toml:"port"`
	BackendType    string              `toml:"backend_type"`
	LogLevel       string              `toml:"log_level"`
	MetricsAddress string              `toml:"metrics_address"`
	MaxTextLength  int                 `toml:"max_text_length"`
	CommandTimeout int                 `toml:"command_timeout"` // seconds, 0 disables
	Disk           DiskBackendConfig   `toml:"disk"`
	SQLite         SQLiteBackendConfig `toml:"sqlite"`
}

type DiskBackendConfig struct {
	Path string `toml:"path"`
}

type SQLiteBackendConfig struct {
	Path string `toml:"path"`
}

func Default() Config {
	return Config{
		Address:       "0.0.0.0",
		Port:          7878,
		BackendType:   MemoryBackendType,
		LogLevel:      "info",
		MaxTextLength: 1 << 20,
		Disk:          DiskBackendConfig{Path: "newsdb"},
		SQLite:        SQLiteBackendConfig{Path: "news.db"},
	}
}

// ParseConfig reads the TOML file at path over the defaults.
func ParseConfig(path string) (Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.BackendType {
	case MemoryBackendType, DiskBackendType, SQLiteBackendType:
	default:
		return fmt.Errorf("invalid backend type %q", c.BackendType)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxTextLength <= 0 {
		return fmt.Errorf("max_text_length must be positive")
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout must not be negative")
	}
	return nil
}
