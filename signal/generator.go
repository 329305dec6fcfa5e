package signal

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/zuchengchen/martingrid/indicators"
	"github.com/zuchengchen/martingrid/market"
)

// Config holds the generator's indicator periods and grid-parameter bases.
type Config struct {
	FastPeriod int `yaml:"fast_period" json:"fast_period"`
	SlowPeriod int `yaml:"slow_period" json:"slow_period"`
	ATRPeriod  int `yaml:"atr_period" json:"atr_period"`
	ADXPeriod  int `yaml:"adx_period" json:"adx_period"`
	CCIPeriod  int `yaml:"cci_period" json:"cci_period"`

	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`

	BaseSpacing    float64 `yaml:"base_spacing" json:"base_spacing"`
	MaxLevels      int     `yaml:"max_levels" json:"max_levels"`
	BaseMultiplier float64 `yaml:"base_multiplier" json:"base_multiplier"`
}

// DefaultConfig returns the stock parameter set.
func DefaultConfig() Config {
	return Config{
		FastPeriod:     12,
		SlowPeriod:     26,
		ATRPeriod:      14,
		ADXPeriod:      14,
		CCIPeriod:      20,
		Cooldown:       time.Hour,
		BaseSpacing:    0.01,
		MaxLevels:      5,
		BaseMultiplier: 1.5,
	}
}

// Generator computes signals on primary-timeframe bar closes. All
// indicator state is owned by the instance; its lifecycle is the
// simulation run.
type Generator struct {
	cfg  Config
	last map[string]time.Time
	log  *zap.Logger
}

// NewGenerator creates a signal generator.
func NewGenerator(cfg Config, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		cfg:  cfg,
		last: make(map[string]time.Time),
		log:  log,
	}
}

// OnBarClose evaluates the symbol on a primary bar close. Both bar slices
// must contain only bars at or before now (no look-ahead). Returns nil
// when no entry condition holds, indicators lack data, or the cooldown has
// not elapsed.
func (g *Generator) OnBarClose(symbol string, now time.Time, primary, secondary []market.Bar) *Signal {
	if last, ok := g.last[symbol]; ok && now.Sub(last) < g.cfg.Cooldown {
		return nil
	}

	snap, ok := g.snapshot(primary, secondary)
	if !ok {
		return nil
	}

	trend := trendOf(snap.FastEMA, snap.SlowEMA)
	if trend == Ranging {
		return nil
	}
	// Confirmed only if the secondary timeframe agrees.
	if trendOf(snap.SecondaryFastEMA, snap.SecondarySlowEMA) != trend {
		return nil
	}

	osc := classifyCCI(snap.CCI)
	if osc.Level == 0 {
		return nil
	}

	// Long only on a confirmed uptrend pullback (oversold); short only on
	// a confirmed downtrend bounce (overbought).
	if trend == Uptrend && osc.Side != market.Long {
		return nil
	}
	if trend == Downtrend && osc.Side != market.Short {
		return nil
	}

	sig := &Signal{
		Time:           now,
		Symbol:         symbol,
		Side:           osc.Side,
		Strength:       osc.Strength,
		Spacing:        g.spacing(snap.ATRPct),
		MaxLevels:      g.levels(gradeADX(snap.ADX)),
		SizeMultiplier: g.cfg.BaseMultiplier * multiplierFactor(osc.Level),
		Snapshot:       snap,
	}

	// Cooldown resets on every emitted signal, whoever consumes it.
	g.last[symbol] = now

	g.log.Info("signal",
		zap.String("symbol", symbol),
		zap.Stringer("side", sig.Side),
		zap.Float64("strength", sig.Strength),
		zap.Float64("spacing", sig.Spacing),
		zap.Int("levels", sig.MaxLevels),
		zap.Float64("multiplier", sig.SizeMultiplier),
		zap.Float64("cci", snap.CCI),
		zap.Float64("adx", snap.ADX))
	return sig
}

func (g *Generator) snapshot(primary, secondary []market.Bar) (Snapshot, bool) {
	var snap Snapshot
	var err error

	if snap.FastEMA, err = indicators.EMA(primary, g.cfg.FastPeriod); err != nil {
		return snap, false
	}
	if snap.SlowEMA, err = indicators.EMA(primary, g.cfg.SlowPeriod); err != nil {
		return snap, false
	}
	if snap.ATRPct, err = indicators.ATRPercent(primary, g.cfg.ATRPeriod); err != nil {
		return snap, false
	}
	if snap.ADX, err = indicators.ADX(primary, g.cfg.ADXPeriod); err != nil {
		return snap, false
	}
	if snap.SecondaryFastEMA, err = indicators.EMA(secondary, g.cfg.FastPeriod); err != nil {
		return snap, false
	}
	if snap.SecondarySlowEMA, err = indicators.EMA(secondary, g.cfg.SlowPeriod); err != nil {
		return snap, false
	}
	if snap.CCI, err = indicators.CCI(secondary, g.cfg.CCIPeriod); err != nil {
		return snap, false
	}
	return snap, true
}

func trendOf(fast, slow float64) Trend {
	switch {
	case fast > slow:
		return Uptrend
	case fast < slow:
		return Downtrend
	default:
		return Ranging
	}
}

// spacing scales the base grid spacing by volatility: ATR% relative to a
// 1% reference, clamped to [0.5x, 2x] of base.
func (g *Generator) spacing(atrPct float64) float64 {
	scale := atrPct / 0.01
	if scale < 0.5 {
		scale = 0.5
	}
	if scale > 2.0 {
		scale = 2.0
	}
	return g.cfg.BaseSpacing * scale
}

// levels scales the configured level count by trend strength, keeping at
// least one level.
func (g *Generator) levels(s Strength) int {
	n := int(math.Round(float64(g.cfg.MaxLevels) * s.levelFactor()))
	if n < 1 {
		n = 1
	}
	return n
}
