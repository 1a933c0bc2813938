package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// point at an empty config so the developer's real file is not read
	t.Setenv("MIZANIA_CONFIG", filepath.Join(t.TempDir(), "config.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "MAD", cfg.Currency.Canonical)
	require.Equal(t, 24*time.Hour, cfg.Maintenance.Interval)
	require.Equal(t, "production", cfg.Logging.Mode)
	require.NotEmpty(t, cfg.Database.Path)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MIZANIA_CONFIG", filepath.Join(t.TempDir(), "config.toml"))
	t.Setenv("MIZANIA_CURRENCY_CANONICAL", "EUR")
	t.Setenv("MIZANIA_LOGGING_MODE", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "EUR", cfg.Currency.Canonical)
	require.Equal(t, "debug", cfg.Logging.Mode)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("MIZANIA_CONFIG", path)

	want := Config{
		Database:    DatabaseConfig{Path: "/tmp/x.db"},
		Currency:    CurrencyConfig{Canonical: "MAD"},
		Maintenance: MaintenanceConfig{Interval: 6 * time.Hour},
		Logging:     LoggingConfig{Mode: "debug"},
	}
	require.NoError(t, Save(want))

	_, err := os.Stat(path)
	require.NoError(t, err)

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, want, got)
}
