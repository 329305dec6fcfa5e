// Package config loads and validates the complete run configuration from
// YAML or JSON and maps it onto the component configs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zuchengchen/martingrid/broker"
	"github.com/zuchengchen/martingrid/engine"
	"github.com/zuchengchen/martingrid/grid"
	"github.com/zuchengchen/martingrid/risk"
	"github.com/zuchengchen/martingrid/signal"
)

// Duration parses "2h", "15m" style strings from YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the complete run configuration.
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Fees       FeesConfig       `json:"fees" yaml:"fees"`
	Signal     SignalConfig     `json:"signal" yaml:"signal"`
	Grid       GridConfig       `json:"grid" yaml:"grid"`
	Hedge      HedgeConfig      `json:"hedge" yaml:"hedge"`
	Risk       risk.Policy      `json:"risk" yaml:"risk"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// AccountConfig sets the simulated account.
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	Leverage       float64 `json:"leverage" yaml:"leverage"`
}

// FeesConfig sets the execution cost model.
type FeesConfig struct {
	Taker           float64 `json:"taker" yaml:"taker"`
	Maker           float64 `json:"maker" yaml:"maker"`
	Slippage        float64 `json:"slippage" yaml:"slippage"`
	MaintenanceRate float64 `json:"maintenance_rate" yaml:"maintenance_rate"`
}

// SignalConfig sets indicator periods and signal shaping.
type SignalConfig struct {
	FastPeriod     int      `json:"fast_period" yaml:"fast_period"`
	SlowPeriod     int      `json:"slow_period" yaml:"slow_period"`
	ATRPeriod      int      `json:"atr_period" yaml:"atr_period"`
	ADXPeriod      int      `json:"adx_period" yaml:"adx_period"`
	CCIPeriod      int      `json:"cci_period" yaml:"cci_period"`
	Cooldown       Duration `json:"cooldown" yaml:"cooldown"`
	BaseSpacing    float64  `json:"base_spacing" yaml:"base_spacing"`
	MaxLevels      int      `json:"max_levels" yaml:"max_levels"`
	BaseMultiplier float64  `json:"base_multiplier" yaml:"base_multiplier"`
}

// GridConfig sets main grid sizing.
type GridConfig struct {
	BaseQuantity float64 `json:"base_quantity" yaml:"base_quantity"`
}

// HedgeConfig sets hedge activation and sizing.
type HedgeConfig struct {
	DrawdownThreshold float64  `json:"drawdown_threshold" yaml:"drawdown_threshold"`
	MaxHold           Duration `json:"max_hold" yaml:"max_hold"`
	Spacing           float64  `json:"spacing" yaml:"spacing"`
	Levels            int      `json:"levels" yaml:"levels"`
	DrawdownFraction  float64  `json:"drawdown_fraction" yaml:"drawdown_fraction"`
	TimeFraction      float64  `json:"time_fraction" yaml:"time_fraction"`
	ProfitThreshold   float64  `json:"profit_threshold" yaml:"profit_threshold"`
	CloseFraction     float64  `json:"close_fraction" yaml:"close_fraction"`
	RecycleFraction   float64  `json:"recycle_fraction" yaml:"recycle_fraction"`
}

// SimulationConfig sets the replay loop.
type SimulationConfig struct {
	PrimaryInterval   Duration `json:"primary_interval" yaml:"primary_interval"`
	SecondaryInterval Duration `json:"secondary_interval" yaml:"secondary_interval"`
	HistoryBars       int      `json:"history_bars" yaml:"history_bars"`
	EquityInterval    Duration `json:"equity_interval" yaml:"equity_interval"`
	CloseAtEnd        bool     `json:"close_at_end" yaml:"close_at_end"`
}

// JournalConfig selects the journal backend.
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "csv", "sqlite", or "none"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LogConfig sets log level and optional rotated file output.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Default returns a configuration that validates and runs as-is.
func Default() *Config {
	sig := signal.DefaultConfig()
	hedge := grid.DefaultHedgeConfig()
	eng := engine.DefaultConfig()

	return &Config{
		Account: AccountConfig{InitialCapital: eng.InitialCapital, Leverage: 20},
		Fees: FeesConfig{
			Taker:           0.0004,
			Maker:           0.0002,
			Slippage:        0.0005,
			MaintenanceRate: 0.005,
		},
		Signal: SignalConfig{
			FastPeriod:     sig.FastPeriod,
			SlowPeriod:     sig.SlowPeriod,
			ATRPeriod:      sig.ATRPeriod,
			ADXPeriod:      sig.ADXPeriod,
			CCIPeriod:      sig.CCIPeriod,
			Cooldown:       Duration(sig.Cooldown),
			BaseSpacing:    sig.BaseSpacing,
			MaxLevels:      sig.MaxLevels,
			BaseMultiplier: sig.BaseMultiplier,
		},
		Grid: GridConfig{BaseQuantity: 0.01},
		Risk: risk.DefaultPolicy(),
		Hedge: HedgeConfig{
			DrawdownThreshold: hedge.DrawdownThreshold,
			MaxHold:           Duration(hedge.MaxHold),
			Spacing:           hedge.Spacing,
			Levels:            hedge.Levels,
			DrawdownFraction:  hedge.DrawdownFraction,
			TimeFraction:      hedge.TimeFraction,
			ProfitThreshold:   hedge.ProfitThreshold,
			CloseFraction:     hedge.CloseFraction,
			RecycleFraction:   hedge.RecycleFraction,
		},
		Simulation: SimulationConfig{
			PrimaryInterval:   Duration(eng.PrimaryInterval),
			SecondaryInterval: Duration(eng.SecondaryInterval),
			HistoryBars:       eng.HistoryBars,
			EquityInterval:    Duration(eng.EquityInterval),
			CloseAtEnd:        eng.CloseAtEnd,
		},
		Journal: JournalConfig{Type: "none"},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadFromFile reads a config file, YAML or JSON by extension, applied on
// top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the config, YAML or JSON by extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func isYAML(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// Validate checks ranges and cross-field consistency.
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Account.Leverage < 1 {
		return fmt.Errorf("account.leverage must be at least 1")
	}
	if c.Fees.Taker < 0 || c.Fees.Maker < 0 || c.Fees.Slippage < 0 {
		return fmt.Errorf("fees must be non-negative")
	}
	if c.Fees.MaintenanceRate <= 0 || c.Fees.MaintenanceRate >= 1 {
		return fmt.Errorf("fees.maintenance_rate must be in (0, 1)")
	}
	if c.Signal.FastPeriod <= 0 || c.Signal.SlowPeriod <= 0 {
		return fmt.Errorf("signal periods must be positive")
	}
	if c.Signal.FastPeriod >= c.Signal.SlowPeriod {
		return fmt.Errorf("signal.fast_period must be less than slow_period")
	}
	if c.Signal.BaseSpacing <= 0 {
		return fmt.Errorf("signal.base_spacing must be positive")
	}
	if c.Signal.MaxLevels < 1 {
		return fmt.Errorf("signal.max_levels must be at least 1")
	}
	if c.Signal.BaseMultiplier < 1 {
		return fmt.Errorf("signal.base_multiplier must be at least 1")
	}
	if c.Grid.BaseQuantity <= 0 {
		return fmt.Errorf("grid.base_quantity must be positive")
	}
	if c.Hedge.DrawdownThreshold >= 0 {
		return fmt.Errorf("hedge.drawdown_threshold must be negative")
	}
	if c.Hedge.Levels < 1 {
		return fmt.Errorf("hedge.levels must be at least 1")
	}
	if c.Hedge.Spacing <= 0 {
		return fmt.Errorf("hedge.spacing must be positive")
	}
	for name, frac := range map[string]float64{
		"hedge.drawdown_fraction": c.Hedge.DrawdownFraction,
		"hedge.time_fraction":     c.Hedge.TimeFraction,
		"hedge.close_fraction":    c.Hedge.CloseFraction,
		"hedge.recycle_fraction":  c.Hedge.RecycleFraction,
	} {
		if frac <= 0 || frac > 1 {
			return fmt.Errorf("%s must be in (0, 1]", name)
		}
	}
	if c.Risk.MaxMarginPct < 0 || c.Risk.MaxExposurePct < 0 || c.Risk.MaxOpenGrids < 0 {
		return fmt.Errorf("risk limits must be non-negative")
	}
	if c.Simulation.PrimaryInterval <= 0 || c.Simulation.SecondaryInterval <= 0 {
		return fmt.Errorf("simulation intervals must be positive")
	}
	if c.Simulation.SecondaryInterval.Std() > c.Simulation.PrimaryInterval.Std() {
		return fmt.Errorf("simulation.secondary_interval must not exceed primary_interval")
	}
	if c.Simulation.HistoryBars < c.Signal.SlowPeriod {
		return fmt.Errorf("simulation.history_bars must cover signal.slow_period")
	}
	switch c.Journal.Type {
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal.dir required for csv journal")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite journal")
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite', or 'none'")
	}
	return nil
}

// BrokerConfig maps onto the simulated broker.
func (c *Config) BrokerConfig() broker.Config {
	return broker.Config{
		TakerFee:              c.Fees.Taker,
		MakerFee:              c.Fees.Maker,
		Slippage:              c.Fees.Slippage,
		Leverage:              c.Account.Leverage,
		MaintenanceMarginRate: c.Fees.MaintenanceRate,
	}
}

// SignalConfig maps onto the signal generator.
func (c *Config) SignalConfig() signal.Config {
	return signal.Config{
		FastPeriod:     c.Signal.FastPeriod,
		SlowPeriod:     c.Signal.SlowPeriod,
		ATRPeriod:      c.Signal.ATRPeriod,
		ADXPeriod:      c.Signal.ADXPeriod,
		CCIPeriod:      c.Signal.CCIPeriod,
		Cooldown:       c.Signal.Cooldown.Std(),
		BaseSpacing:    c.Signal.BaseSpacing,
		MaxLevels:      c.Signal.MaxLevels,
		BaseMultiplier: c.Signal.BaseMultiplier,
	}
}

// MainGridConfig maps onto the main grid manager.
func (c *Config) MainGridConfig() grid.MainConfig {
	return grid.MainConfig{BaseQuantity: c.Grid.BaseQuantity}
}

// HedgeGridConfig maps onto the hedge grid manager.
func (c *Config) HedgeGridConfig() grid.HedgeConfig {
	return grid.HedgeConfig{
		DrawdownThreshold: c.Hedge.DrawdownThreshold,
		MaxHold:           c.Hedge.MaxHold.Std(),
		Spacing:           c.Hedge.Spacing,
		Levels:            c.Hedge.Levels,
		DrawdownFraction:  c.Hedge.DrawdownFraction,
		TimeFraction:      c.Hedge.TimeFraction,
		ProfitThreshold:   c.Hedge.ProfitThreshold,
		CloseFraction:     c.Hedge.CloseFraction,
		RecycleFraction:   c.Hedge.RecycleFraction,
	}
}

// EngineConfig maps onto the simulation loop.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		InitialCapital:    c.Account.InitialCapital,
		PrimaryInterval:   c.Simulation.PrimaryInterval.Std(),
		SecondaryInterval: c.Simulation.SecondaryInterval.Std(),
		HistoryBars:       c.Simulation.HistoryBars,
		EquityInterval:    c.Simulation.EquityInterval.Std(),
		CloseAtEnd:        c.Simulation.CloseAtEnd,
		Risk:              c.Risk,
	}
}
