// Package risk gates new grid exposure against account-level limits.
// Grids already running are never closed by policy; only new entries are
// blocked.
package risk

import "fmt"

// Policy holds the account-level exposure limits.
type Policy struct {
	MaxMarginPct   float64 `yaml:"max_margin_pct" json:"max_margin_pct"`     // margin used / equity
	MaxExposurePct float64 `yaml:"max_exposure_pct" json:"max_exposure_pct"` // open notional / equity
	MaxOpenGrids   int     `yaml:"max_open_grids" json:"max_open_grids"`
}

// DefaultPolicy allows three concurrent grids with notional up to 3x
// equity and at most 60% of equity locked as margin.
func DefaultPolicy() Policy {
	return Policy{
		MaxMarginPct:   0.6,
		MaxExposurePct: 3.0,
		MaxOpenGrids:   3,
	}
}

// Snapshot is the account state a decision is made against.
type Snapshot struct {
	Equity     float64
	MarginUsed float64
	Notional   float64 // open notional across all books at current marks
	OpenGrids  int
}

type Violation struct {
	Code string
	Msg  string
}

// Decision is the evaluation result. Allowed is false if any violation
// was recorded.
type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// String joins violation codes for logging.
func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	s := ""
	for i, v := range d.Violations {
		if i > 0 {
			s += ","
		}
		s += v.Code
	}
	return s
}

// Evaluate checks a snapshot against the policy. A zero limit disables
// that check.
func Evaluate(p Policy, snap Snapshot) Decision {
	d := Decision{Allowed: true}

	if snap.Equity <= 0 {
		d.add("NO_EQUITY", "equity is not positive")
		return d
	}

	if p.MaxMarginPct > 0 {
		if pct := snap.MarginUsed / snap.Equity; pct > p.MaxMarginPct {
			d.add("MARGIN_TOO_HIGH",
				fmt.Sprintf("margin used %.2f%% exceeds max %.2f%%", 100*pct, 100*p.MaxMarginPct))
		}
	}

	if p.MaxExposurePct > 0 {
		if pct := snap.Notional / snap.Equity; pct > p.MaxExposurePct {
			d.add("EXPOSURE_TOO_HIGH",
				fmt.Sprintf("open notional %.2fx equity exceeds max %.2fx", pct, p.MaxExposurePct))
		}
	}

	if p.MaxOpenGrids > 0 && snap.OpenGrids >= p.MaxOpenGrids {
		d.add("TOO_MANY_GRIDS",
			fmt.Sprintf("open grids %d at max %d", snap.OpenGrids, p.MaxOpenGrids))
	}

	return d
}
