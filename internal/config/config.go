// Package config loads the lab configuration from a YAML file, falling
// back to defaults for anything unset.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/evaluation"
	"spread-strategy-lab/internal/evolution"
	"spread-strategy-lab/internal/signal"
)

// Config errors.
var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the full lab configuration.
type Config struct {
	InstrumentID string `yaml:"instrument_id"`

	Signal    signal.PipelineConfig   `yaml:"signal"`
	Risk      domain.RiskLimits       `yaml:"risk"`
	Evolution evolution.Config        `yaml:"evolution"`
	Weights   domain.CompositeWeights `yaml:"weights"`
	Bounds    domain.GenomeBounds     `yaml:"bounds"`

	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Feed    FeedConfig    `yaml:"feed"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	ListenAddr       string `yaml:"listen_addr"`
	CycleIntervalSec int    `yaml:"cycle_interval_sec"` // seconds between evolution cycles; 0 disables the timer
	SnapshotEvery    int    `yaml:"snapshot_every"`     // persist a snapshot every N cycles; 0 disables
	Verbose          bool   `yaml:"verbose"`
}

// StorageConfig holds database connection settings. Empty DSNs select the
// in-memory stores.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// FeedConfig holds the tick feed settings.
type FeedConfig struct {
	WSEndpoint string `yaml:"ws_endpoint"`
	BatchMs    int    `yaml:"batch_ms"` // tick batching window for Advance calls
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		InstrumentID: "BTC-USD",
		Signal:       signal.DefaultPipelineConfig("venue_a", "venue_b"),
		Risk:         domain.DefaultRiskLimits(),
		Evolution:    evolution.DefaultConfig(),
		Weights:      domain.DefaultCompositeWeights(),
		Bounds:       domain.DefaultGenomeBounds(),
		Server: ServerConfig{
			ListenAddr:       ":8080",
			CycleIntervalSec: 3600,
			SnapshotEvery:    1,
		},
		Feed: FeedConfig{
			BatchMs: 250,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.InstrumentID == "" {
		return fmt.Errorf("%w: instrument_id is required", ErrInvalidConfig)
	}
	if c.Signal.VenueA == "" || c.Signal.VenueB == "" {
		return fmt.Errorf("%w: both venues are required", ErrInvalidConfig)
	}
	if c.Signal.VenueA == c.Signal.VenueB {
		return fmt.Errorf("%w: venues must differ", ErrInvalidConfig)
	}
	if c.Signal.PairTolerance <= 0 {
		return fmt.Errorf("%w: pair_tolerance_ms must be positive", ErrInvalidConfig)
	}
	if c.Signal.Regime.LowVolThreshold > c.Signal.Regime.HighVolThreshold {
		return fmt.Errorf("%w: low_vol_threshold must not exceed high_vol_threshold", ErrInvalidConfig)
	}
	if c.Evolution.PopulationSize < 2 {
		return fmt.Errorf("%w: population_size must be at least 2", ErrInvalidConfig)
	}
	if c.Evolution.RetireFraction <= 0 || c.Evolution.RetireFraction >= 1 {
		return fmt.Errorf("%w: retire_fraction must be in (0, 1)", ErrInvalidConfig)
	}
	if c.Evolution.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital must be positive", ErrInvalidConfig)
	}
	if sum := c.Weights.Sharpe + c.Weights.Sortino + c.Weights.MaxDrawdown + c.Weights.WinRate; sum <= 0 {
		return fmt.Errorf("%w: composite weights must sum to a positive value", ErrInvalidConfig)
	}
	return nil
}

// EvalConfig builds the evaluation configuration from the weights.
func (c *Config) EvalConfig() evaluation.Config {
	cfg := evaluation.DefaultConfig()
	cfg.Weights = c.Weights
	return cfg
}
