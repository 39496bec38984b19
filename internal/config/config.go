// Package config handles loading, defaulting, and validation of the
// swhunter TOML configuration file. Every section maps to a typed struct
// so the rest of the codebase gets strong typing without manual key
// lookups.
package config

import (
	"errors"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Database DatabaseConfig `toml:"database" json:"database"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Archive  ArchiveConfig  `toml:"archive"  json:"archive"`
	NATS     NATSConfig     `toml:"nats"     json:"nats"`
}

type DatabaseConfig struct {
	Path string `toml:"path" json:"path"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// ArchiveConfig configures the optional ClickHouse reception archive.
type ArchiveConfig struct {
	Enabled  bool   `toml:"enabled"  json:"enabled"`
	Host     string `toml:"host"     json:"host"`
	Port     int    `toml:"port"     json:"port"`
	Database string `toml:"database" json:"database"`
	User     string `toml:"user"     json:"user"`
	Password string `toml:"password" json:"password"`
}

// NATSConfig configures the optional event publisher.
type NATSConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	URL     string `toml:"url"     json:"url"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path: "swhunter.db",
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8080",
		},
		Archive: ArchiveConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     9000,
			Database: "swhunter",
			User:     "default",
			Password: "",
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://localhost:4222",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Archive.Enabled {
		if cfg.Archive.Host == "" {
			return errors.New("archive.host must not be empty")
		}
		if cfg.Archive.Port <= 0 || cfg.Archive.Port > 65535 {
			return errors.New("archive.port must be a valid port")
		}
		if cfg.Archive.Database == "" {
			return errors.New("archive.database must not be empty")
		}
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url must not be empty")
	}
	return nil
}
