package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	doc := `
account:
  initial_capital: 25000
  leverage: 10
signal:
  cooldown: 30m
hedge:
  max_hold: 4h
journal:
  type: sqlite
  db_path: runs.db
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.InDelta(t, 25_000, cfg.Account.InitialCapital, 1e-9)
	require.InDelta(t, 10, cfg.Account.Leverage, 1e-9)
	require.Equal(t, 30*time.Minute, cfg.Signal.Cooldown.Std())
	require.Equal(t, 4*time.Hour, cfg.Hedge.MaxHold.Std())

	// Sections not mentioned keep their defaults.
	require.Equal(t, 26, cfg.Signal.SlowPeriod)
	require.InDelta(t, -0.05, cfg.Hedge.DrawdownThreshold, 1e-9)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	doc := `{"account": {"initial_capital": 5000, "leverage": 5}, "simulation": {"primary_interval": "5m", "secondary_interval": "1m"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.InDelta(t, 5000, cfg.Account.InitialCapital, 1e-9)
	require.Equal(t, 5*time.Minute, cfg.Simulation.PrimaryInterval.Std())
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signal:\n  cooldown: soon\n"), 0o644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "soon")
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero capital", func(c *Config) { c.Account.InitialCapital = 0 }, "initial_capital"},
		{"sub-1 leverage", func(c *Config) { c.Account.Leverage = 0.5 }, "leverage"},
		{"fast >= slow", func(c *Config) { c.Signal.FastPeriod = 30 }, "fast_period"},
		{"maintenance rate", func(c *Config) { c.Fees.MaintenanceRate = 1 }, "maintenance_rate"},
		{"positive drawdown threshold", func(c *Config) { c.Hedge.DrawdownThreshold = 0.05 }, "drawdown_threshold"},
		{"fraction above one", func(c *Config) { c.Hedge.RecycleFraction = 1.5 }, "recycle_fraction"},
		{"secondary above primary", func(c *Config) {
			c.Simulation.SecondaryInterval = c.Simulation.PrimaryInterval * 2
		}, "secondary_interval"},
		{"short history", func(c *Config) { c.Simulation.HistoryBars = 5 }, "history_bars"},
		{"csv without dir", func(c *Config) { c.Journal.Type = "csv" }, "journal.dir"},
		{"unknown journal", func(c *Config) { c.Journal.Type = "parquet" }, "journal.type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Account.InitialCapital = 42_000
	cfg.Hedge.MaxHold = Duration(90 * time.Minute)

	for _, name := range []string{"run.yaml", "run.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path))

		got, err := LoadFromFile(path)
		require.NoError(t, err)
		require.InDelta(t, 42_000, got.Account.InitialCapital, 1e-9)
		require.Equal(t, 90*time.Minute, got.Hedge.MaxHold.Std())
	}
}

func TestComponentMapping(t *testing.T) {
	cfg := Default()
	cfg.Account.Leverage = 15
	cfg.Signal.MaxLevels = 3
	cfg.Hedge.Levels = 6

	require.InDelta(t, 15, cfg.BrokerConfig().Leverage, 1e-9)
	require.Equal(t, 3, cfg.SignalConfig().MaxLevels)
	require.Equal(t, 6, cfg.HedgeGridConfig().Levels)
	require.Equal(t, cfg.Simulation.PrimaryInterval.Std(), cfg.EngineConfig().PrimaryInterval)
}
