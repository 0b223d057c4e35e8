package allocation

import (
	"fmt"
	"math"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/modules/signals"
)

// Policy names accepted by NewPolicy
const (
	PolicyFixed          = "fixed"
	PolicyLinearMomentum = "linear-momentum"
	PolicyLinearValue    = "linear-value"
	PolicyGuarded        = "guarded"
	PolicyAdaptive       = "adaptive"
)

// Policy maps one asset's signal snapshot to a spend multiplier.
// Implementations must stay within [MMin, MMax] and return the neutral 1.0
// whenever the snapshot is not ready.
type Policy interface {
	Multiplier(snap signals.Snapshot) float64
	Name() string
}

// PolicyNames lists the accepted policy names in presentation order
func PolicyNames() []string {
	return []string{
		PolicyFixed,
		PolicyLinearMomentum,
		PolicyLinearValue,
		PolicyGuarded,
		PolicyAdaptive,
	}
}

// NewPolicy builds a policy by name, validating params first
func NewPolicy(name string, params Params) (Policy, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	switch name {
	case PolicyFixed:
		return fixedPolicy{}, nil
	case PolicyLinearMomentum:
		return &linearPolicy{params: params}, nil
	case PolicyLinearValue:
		return &linearPolicy{params: params, value: true}, nil
	case PolicyGuarded:
		return &guardedPolicy{params: params}, nil
	case PolicyAdaptive:
		return &adaptivePolicy{params: params}, nil
	default:
		return nil, domain.NewConfigError("policy", fmt.Sprintf("unknown policy %q", name))
	}
}

func clip(m, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, m))
}

// fixedPolicy is plain DCA: every scheduled buy at baseline size.
type fixedPolicy struct{}

func (fixedPolicy) Multiplier(signals.Snapshot) float64 { return 1.0 }
func (fixedPolicy) Name() string                        { return PolicyFixed }

// linearPolicy tilts spend linearly in a single z-score. The momentum tilt
// buys more when z_mom is positive; the value tilt buys more when z_val is
// negative (price depressed relative to trend).
type linearPolicy struct {
	params Params
	value  bool
}

func (p *linearPolicy) Multiplier(snap signals.Snapshot) float64 {
	if !snap.Ready() {
		return 1.0
	}

	m := 1.0 + p.params.K*snap.MomentumZ
	if p.value {
		m = 1.0 - p.params.K*snap.ValuationZ
	}
	return clip(m, p.params.MMin, p.params.MMax)
}

func (p *linearPolicy) Name() string {
	if p.value {
		return PolicyLinearValue
	}
	return PolicyLinearMomentum
}

// guardedPolicy is the linear momentum tilt with a hard floor and a trend
// guard. Momentum strictly below z_floor collapses the multiplier to MMin;
// boosts above 1.0 require a confirmed uptrend. Cuts always pass.
type guardedPolicy struct {
	params Params
}

func (p *guardedPolicy) Multiplier(snap signals.Snapshot) float64 {
	if !snap.Ready() {
		return 1.0
	}

	z := snap.MomentumZ
	m := 1.0 + p.params.K*z
	if z < p.params.ZFloor {
		m = p.params.MMin
	}
	m = clip(m, p.params.MMin, p.params.MMax)

	if p.params.UseTrendGuard && m > 1.0 && !snap.TrendOK {
		m = 1.0
	}
	return m
}

func (p *guardedPolicy) Name() string { return PolicyGuarded }

// adaptivePolicy maps momentum z through five monotone regions, then applies
// the valuation and trend guards. The ramp below zero eases from MMin back to
// neutral; the dead zone [0, z_entry) holds at 1.0; the ramp [z_entry, z_full]
// climbs to MMax.
type adaptivePolicy struct {
	params Params
}

func (p *adaptivePolicy) Multiplier(snap signals.Snapshot) float64 {
	if !snap.Ready() {
		return 1.0
	}

	m := p.fromZ(snap.MomentumZ)

	if p.params.UseValuationGuard && snap.ValuationZ >= p.params.ValZCap && m > 1.0 {
		m = 1.0
	}
	if p.params.UseTrendGuard && m > 1.0 && !snap.TrendOK {
		m = 1.0
	}
	return clip(m, p.params.MMin, p.params.MMax)
}

func (p *adaptivePolicy) Name() string { return PolicyAdaptive }

// fromZ evaluates the piecewise multiplier curve.
// Continuity holds at every breakpoint: MMin at z_floor, 1.0 at 0 and
// z_entry, MMax at z_full.
func (p *adaptivePolicy) fromZ(z float64) float64 {
	pr := p.params
	switch {
	case math.IsNaN(z):
		return 1.0
	case z <= pr.ZFloor:
		return pr.MMin
	case z < 0:
		span := 0.0 - pr.ZFloor
		if span <= 0 {
			return 1.0
		}
		return pr.MMin + (z-pr.ZFloor)/span*(1.0-pr.MMin)
	case z < pr.ZEntry:
		return 1.0
	case z <= pr.ZFull:
		span := pr.ZFull - pr.ZEntry
		if span <= 0 {
			return pr.MMax
		}
		return 1.0 + (z-pr.ZEntry)/span*(pr.MMax-1.0)
	default:
		return pr.MMax
	}
}
