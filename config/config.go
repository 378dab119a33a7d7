// Package config loads batchd's server configuration from a YAML file
// over Default() values and validates it, the way database.MariaDBConfig
// validates itself before connecting. No field can be overridden from
// the command line; cmd/batchd's only flag, -config, names the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vexxhost/batchd/database"
)

// Config is the full server configuration, keyed in the YAML file by the
// tags below.
type Config struct {
	Port        int    `yaml:"port"`
	Debug       bool   `yaml:"debug"`
	Partition   string `yaml:"partition"`
	LockfilePath string `yaml:"lockfile_path"`
	AccountingLogPath string `yaml:"accounting_log_path"`

	DBType string                  `yaml:"db_type"` // "mariadb" or "memory"
	DB     database.MariaDBConfig `yaml:"db"`

	NATSUrl string `yaml:"nats_url"`

	AuthEnabled bool   `yaml:"auth_enabled"`
	AuthToken   string `yaml:"auth_token"`

	Peers []PeerConfig `yaml:"peers"`
}

// PeerConfig is one statically-configured federated peer Server, spec.md
// section 4.5: "A Server knows its peers from static configuration."
type PeerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns a Config with the same defaults the teacher's flags
// carry (debug off, auth on, mariadb).
func Default() *Config {
	return &Config{
		Port:              8080,
		Debug:             false,
		Partition:         "default",
		LockfilePath:      "/var/run/batchd/batchd.lock",
		AccountingLogPath: "/var/log/batchd/accounting.log",
		DBType:            "mariadb",
		DB: database.MariaDBConfig{
			Host:     "localhost",
			Port:     3306,
			Database: "batchd",
			Username: "batchd",
			Password: "batchd",
		},
		NATSUrl:     "nats://localhost:4222",
		AuthEnabled: true,
	}
}

// Load reads a YAML config file at path into a Default()-seeded Config,
// so any field the file omits keeps its default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields needed before connecting to anything,
// mirroring database.MariaDBConnection.validateConfig's style of one
// check per required field.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Partition == "" {
		return fmt.Errorf("partition is required")
	}
	if c.DBType != "mariadb" && c.DBType != "memory" {
		return fmt.Errorf("db_type must be \"mariadb\" or \"memory\"")
	}
	if c.DBType == "mariadb" {
		if c.DB.Host == "" {
			return fmt.Errorf("db.host is required")
		}
		if c.DB.Database == "" {
			return fmt.Errorf("db.database is required")
		}
	}
	if c.AuthEnabled && c.AuthToken == "" {
		return fmt.Errorf("auth_token is required when auth_enabled is true")
	}
	return nil
}
