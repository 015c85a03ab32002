package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-strategy-lab/internal/domain"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "BTC-USD", cfg.InstrumentID)
	assert.Equal(t, domain.Venue("venue_a"), cfg.Signal.VenueA)
	assert.Equal(t, domain.Venue("venue_b"), cfg.Signal.VenueB)
	assert.Equal(t, 8, cfg.Evolution.PopulationSize)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instrument_id: ETH-USD
signal:
  venue_a: cex
  venue_b: dex
  pair_tolerance_ms: 250
risk:
  daily_loss_cap_pct: 3.5
evolution:
  population_size: 16
  seed: 99
server:
  listen_addr: ":9000"
  verbose: true
storage:
  postgres_dsn: "postgres://localhost/lab"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ETH-USD", cfg.InstrumentID)
	assert.Equal(t, domain.Venue("cex"), cfg.Signal.VenueA)
	assert.Equal(t, int64(250), cfg.Signal.PairTolerance)
	assert.Equal(t, 3.5, cfg.Risk.DailyLossCapPct)
	assert.Equal(t, 16, cfg.Evolution.PopulationSize)
	assert.Equal(t, int64(99), cfg.Evolution.Seed)
	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.True(t, cfg.Server.Verbose)
	assert.Equal(t, "postgres://localhost/lab", cfg.Storage.PostgresDSN)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10.0, cfg.Risk.PositionLimitPct)
	assert.Equal(t, 0.25, cfg.Evolution.RetireFraction)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instrument_id: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing instrument", func(c *Config) { c.InstrumentID = "" }},
		{"missing venue", func(c *Config) { c.Signal.VenueB = "" }},
		{"identical venues", func(c *Config) { c.Signal.VenueB = c.Signal.VenueA }},
		{"zero pair tolerance", func(c *Config) { c.Signal.PairTolerance = 0 }},
		{"negative pair tolerance", func(c *Config) { c.Signal.PairTolerance = -100 }},
		{"inverted vol thresholds", func(c *Config) {
			c.Signal.Regime.LowVolThreshold = 0.5
			c.Signal.Regime.HighVolThreshold = 0.1
		}},
		{"population too small", func(c *Config) { c.Evolution.PopulationSize = 1 }},
		{"retire fraction zero", func(c *Config) { c.Evolution.RetireFraction = 0 }},
		{"retire fraction one", func(c *Config) { c.Evolution.RetireFraction = 1 }},
		{"no capital", func(c *Config) { c.Evolution.InitialCapital = 0 }},
		{"zero weights", func(c *Config) { c.Weights = domain.CompositeWeights{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestEvalConfig_CarriesWeights(t *testing.T) {
	cfg := Default()
	cfg.Weights = domain.CompositeWeights{Sharpe: 1}

	eval := cfg.EvalConfig()
	assert.Equal(t, cfg.Weights, eval.Weights)
}
