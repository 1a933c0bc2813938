package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database    DatabaseConfig
	Currency    CurrencyConfig
	Maintenance MaintenanceConfig
	Logging     LoggingConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// CurrencyConfig holds the canonical currency selection.
type CurrencyConfig struct {
	Canonical string
}

// MaintenanceConfig controls the periodic recurrence/auto-pay pass.
type MaintenanceConfig struct {
	Interval time.Duration
}

// LoggingConfig selects the logger mode.
type LoggingConfig struct {
	Mode string
}

// Load reads configuration from file and env. Env var overrides use prefix MIZANIA_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "mizania", "mizania.db"))
	v.SetDefault("currency.canonical", "MAD")
	v.SetDefault("maintenance.interval", "24h")
	v.SetDefault("logging.mode", "production")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("MIZANIA_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "mizania"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("MIZANIA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// This is used by the host application for non-sensitive preferences; the canonical
// currency itself lives in the sealed preference store.
func Save(cfg Config) error {
	path := os.Getenv("MIZANIA_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "mizania", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("currency.canonical", cfg.Currency.Canonical)
	v.Set("maintenance.interval", cfg.Maintenance.Interval.String())
	v.Set("logging.mode", cfg.Logging.Mode)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
