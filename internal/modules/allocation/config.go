// Package allocation turns per-asset signals into spend multipliers and
// resolves desired spends against the deployable cash budget.
package allocation

import (
	"github.com/aristath/dca-lab/internal/domain"
)

// Params holds the multiplier shape shared by the tilt policies.
// Thresholds are z-scores; multipliers are dimensionless factors applied
// to baseline x weight.
type Params struct {
	K       float64 // linear tilt slope per unit of z
	MMin    float64 // multiplier floor
	MMax    float64 // multiplier ceiling
	ZFloor  float64 // momentum z at/below which the floor applies
	ZEntry  float64 // momentum z where the boost ramp begins
	ZFull   float64 // momentum z where the boost ramp saturates
	ValZCap float64 // valuation z at/above which boosts are blocked

	UseTrendGuard     bool // cap boosts to 1.0 when the trend is not confirmed
	UseValuationGuard bool // cap boosts to 1.0 when the asset looks expensive
}

// DefaultDailyParams returns the daily-frequency defaults
func DefaultDailyParams() Params {
	return Params{
		K:                 0.5,
		MMin:              0.5,
		MMax:              1.5,
		ZFloor:            -1.0,
		ZEntry:            0.5,
		ZFull:             2.0,
		ValZCap:           2.0,
		UseTrendGuard:     true,
		UseValuationGuard: true,
	}
}

// DefaultWeeklyParams returns the weekly-frequency defaults.
// The entry threshold is looser and the valuation cap wider because weekly
// z-scores move in coarser steps.
func DefaultWeeklyParams() Params {
	p := DefaultDailyParams()
	p.ZEntry = 0.2
	p.ValZCap = 3.0
	return p
}

// Validate checks parameter sanity at construction time
func (p Params) Validate() error {
	if p.K < 0 {
		return domain.NewConfigError("k", "tilt slope must be non-negative")
	}
	if p.MMin < 0 {
		return domain.NewConfigError("m_min", "multiplier floor must be non-negative")
	}
	if p.MMin > p.MMax {
		return domain.NewConfigError("m_min", "multiplier floor exceeds ceiling")
	}
	if p.ZFloor >= 0 {
		return domain.NewConfigError("z_floor", "must be negative")
	}
	if p.ZEntry < 0 {
		return domain.NewConfigError("z_entry", "must be non-negative")
	}
	if p.ZFull <= p.ZEntry {
		return domain.NewConfigError("z_full", "must exceed z_entry")
	}
	return nil
}
