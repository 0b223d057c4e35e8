package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/modules/signals"
)

// readySnap builds a warmed-up snapshot with the given z-scores
func readySnap(zMom, zVal float64, trendOK bool) signals.Snapshot {
	sma := 100.0
	ratio := 0.0
	return signals.Snapshot{
		Symbol:     "QQQ",
		Price:      105.0,
		Fast:       &sma,
		Slow:       &sma,
		Momentum:   &ratio,
		Deviation:  &ratio,
		MomentumZ:  zMom,
		ValuationZ: zVal,
		TrendOK:    trendOK,
	}
}

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewPolicyByName(t *testing.T) {
	for _, name := range PolicyNames() {
		p, err := NewPolicy(name, DefaultDailyParams())
		if err != nil {
			t.Fatalf("NewPolicy(%q) returned error: %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("policy name = %q, want %q", p.Name(), name)
		}
	}

	_, err := NewPolicy("martingale", DefaultDailyParams())
	if err == nil {
		t.Fatal("expected error for unknown policy name")
	}
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		field  string
	}{
		{"negative slope", func(p *Params) { p.K = -0.1 }, "k"},
		{"negative floor multiplier", func(p *Params) { p.MMin = -0.5 }, "m_min"},
		{"floor above ceiling", func(p *Params) { p.MMin = 2.0; p.MMax = 1.5 }, "m_min"},
		{"non-negative z_floor", func(p *Params) { p.ZFloor = 0.0 }, "z_floor"},
		{"negative z_entry", func(p *Params) { p.ZEntry = -0.1 }, "z_entry"},
		{"z_full at z_entry", func(p *Params) { p.ZFull = p.ZEntry }, "z_full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultDailyParams()
			tt.mutate(&params)
			err := params.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %T", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("error field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}

	if err := DefaultDailyParams().Validate(); err != nil {
		t.Errorf("daily defaults should validate: %v", err)
	}
	if err := DefaultWeeklyParams().Validate(); err != nil {
		t.Errorf("weekly defaults should validate: %v", err)
	}
}

func TestFixedNeutral(t *testing.T) {
	p, err := NewPolicy(PolicyFixed, DefaultDailyParams())
	if err != nil {
		t.Fatal(err)
	}
	for _, z := range []float64{-5, -1, 0, 1, 5} {
		if m := p.Multiplier(readySnap(z, z, false)); m != 1.0 {
			t.Errorf("fixed multiplier at z=%v: got %v, want 1.0", z, m)
		}
	}
}

func TestLinearMomentumTilt(t *testing.T) {
	p, err := NewPolicy(PolicyLinearMomentum, DefaultDailyParams())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		zMom float64
		want float64
	}{
		{0.0, 1.0},
		{0.4, 1.2},
		{-0.6, 0.7},
		{2.0, 1.5},  // clipped at ceiling
		{-3.0, 0.5}, // clipped at floor
	}
	for _, tt := range tests {
		got := p.Multiplier(readySnap(tt.zMom, 0, true))
		if !approxEq(got, tt.want) {
			t.Errorf("multiplier(z_mom=%v) = %v, want %v", tt.zMom, got, tt.want)
		}
	}
}

func TestLinearValueTilt(t *testing.T) {
	p, err := NewPolicy(PolicyLinearValue, DefaultDailyParams())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		zVal float64
		want float64
	}{
		{0.0, 1.0},
		{0.4, 0.8},  // expensive, buy less
		{-0.6, 1.3}, // depressed, buy more
		{3.0, 0.5},
		{-2.0, 1.5},
	}
	for _, tt := range tests {
		// momentum z is deliberately extreme: the value tilt must ignore it
		got := p.Multiplier(readySnap(10.0, tt.zVal, true))
		if !approxEq(got, tt.want) {
			t.Errorf("multiplier(z_val=%v) = %v, want %v", tt.zVal, got, tt.want)
		}
	}
}

func TestGuardedFloorIsStrict(t *testing.T) {
	params := DefaultDailyParams()
	params.MMin = 0.25
	p, err := NewPolicy(PolicyGuarded, params)
	if err != nil {
		t.Fatal(err)
	}

	// exactly at the floor threshold the linear formula still applies
	if got := p.Multiplier(readySnap(-1.0, 0, true)); !approxEq(got, 0.5) {
		t.Errorf("multiplier at z_floor = %v, want 0.5", got)
	}
	// strictly below it the multiplier collapses to the floor
	if got := p.Multiplier(readySnap(-1.01, 0, true)); !approxEq(got, 0.25) {
		t.Errorf("multiplier below z_floor = %v, want 0.25", got)
	}
}

func TestGuardedTrendGuard(t *testing.T) {
	params := DefaultDailyParams()
	p, err := NewPolicy(PolicyGuarded, params)
	if err != nil {
		t.Fatal(err)
	}

	if got := p.Multiplier(readySnap(2.0, 0, true)); !approxEq(got, 1.5) {
		t.Errorf("boost with confirmed trend = %v, want 1.5", got)
	}
	if got := p.Multiplier(readySnap(2.0, 0, false)); !approxEq(got, 1.0) {
		t.Errorf("boost without confirmed trend = %v, want 1.0", got)
	}
	// cuts pass regardless of trend
	if got := p.Multiplier(readySnap(-0.5, 0, false)); !approxEq(got, 0.75) {
		t.Errorf("cut without trend = %v, want 0.75", got)
	}

	params.UseTrendGuard = false
	p, err = NewPolicy(PolicyGuarded, params)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Multiplier(readySnap(2.0, 0, false)); !approxEq(got, 1.5) {
		t.Errorf("boost with guard disabled = %v, want 1.5", got)
	}
}

func TestAdaptiveBreakpoints(t *testing.T) {
	p, err := NewPolicy(PolicyAdaptive, DefaultDailyParams())
	if err != nil {
		t.Fatal(err)
	}

	// daily defaults: z_floor=-1, z_entry=0.5, z_full=2, m in [0.5, 1.5]
	tests := []struct {
		zMom float64
		want float64
	}{
		{-2.0, 0.5},   // below floor
		{-1.0, 0.5},   // at floor
		{-0.5, 0.75},  // midway up the recovery ramp
		{0.0, 1.0},    // neutral
		{0.25, 1.0},   // dead zone
		{0.5, 1.0},    // ramp start
		{1.25, 1.25},  // midway up the boost ramp
		{2.0, 1.5},    // ramp saturates
		{3.0, 1.5},    // beyond
	}
	for _, tt := range tests {
		got := p.Multiplier(readySnap(tt.zMom, 0, true))
		if !approxEq(got, tt.want) {
			t.Errorf("multiplier(z_mom=%v) = %v, want %v", tt.zMom, got, tt.want)
		}
	}
}

func TestAdaptiveMonotoneWithinBounds(t *testing.T) {
	params := DefaultDailyParams()
	p, err := NewPolicy(PolicyAdaptive, params)
	if err != nil {
		t.Fatal(err)
	}

	prev := math.Inf(-1)
	for z := -5.0; z <= 5.0; z += 0.01 {
		m := p.Multiplier(readySnap(z, 0, true))
		if m < params.MMin-1e-12 || m > params.MMax+1e-12 {
			t.Fatalf("multiplier out of bounds at z=%v: %v", z, m)
		}
		if m < prev-1e-12 {
			t.Fatalf("multiplier decreased at z=%v: %v -> %v", z, prev, m)
		}
		prev = m
	}
}

func TestAdaptiveValuationGuard(t *testing.T) {
	params := DefaultDailyParams()
	p, err := NewPolicy(PolicyAdaptive, params)
	if err != nil {
		t.Fatal(err)
	}

	// strong momentum but stretched valuation: boost blocked
	if got := p.Multiplier(readySnap(3.0, 2.0, true)); !approxEq(got, 1.0) {
		t.Errorf("boost at valuation cap = %v, want 1.0", got)
	}
	if got := p.Multiplier(readySnap(3.0, 1.99, true)); !approxEq(got, 1.5) {
		t.Errorf("boost below valuation cap = %v, want 1.5", got)
	}
	// cuts are never blocked by valuation
	if got := p.Multiplier(readySnap(-2.0, 5.0, true)); !approxEq(got, 0.5) {
		t.Errorf("cut with stretched valuation = %v, want 0.5", got)
	}

	params.UseValuationGuard = false
	p, err = NewPolicy(PolicyAdaptive, params)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Multiplier(readySnap(3.0, 5.0, true)); !approxEq(got, 1.5) {
		t.Errorf("boost with guard disabled = %v, want 1.5", got)
	}
}

func TestAdaptiveTrendGuard(t *testing.T) {
	p, err := NewPolicy(PolicyAdaptive, DefaultDailyParams())
	if err != nil {
		t.Fatal(err)
	}

	if got := p.Multiplier(readySnap(3.0, 0, false)); !approxEq(got, 1.0) {
		t.Errorf("boost without confirmed trend = %v, want 1.0", got)
	}
	if got := p.Multiplier(readySnap(-0.5, 0, false)); !approxEq(got, 0.75) {
		t.Errorf("cut without confirmed trend = %v, want 0.75", got)
	}
}

func TestPoliciesNeutralWhenNotReady(t *testing.T) {
	cold := signals.Snapshot{Symbol: "QQQ", Price: 100, MomentumZ: 4.0, ValuationZ: -4.0}
	for _, name := range PolicyNames() {
		p, err := NewPolicy(name, DefaultDailyParams())
		if err != nil {
			t.Fatal(err)
		}
		if m := p.Multiplier(cold); m != 1.0 {
			t.Errorf("%s multiplier before warm-up = %v, want 1.0", name, m)
		}
	}
}

func TestPolicyBoundsProperty(t *testing.T) {
	params := DefaultDailyParams()
	for _, name := range PolicyNames() {
		p, err := NewPolicy(name, params)
		if err != nil {
			t.Fatal(err)
		}
		for zMom := -6.0; zMom <= 6.0; zMom += 0.5 {
			for zVal := -6.0; zVal <= 6.0; zVal += 0.5 {
				for _, trendOK := range []bool{true, false} {
					m := p.Multiplier(readySnap(zMom, zVal, trendOK))
					if m < params.MMin-1e-12 || m > params.MMax+1e-12 {
						t.Fatalf("%s multiplier out of bounds at z_mom=%v z_val=%v trend=%v: %v",
							name, zMom, zVal, trendOK, m)
					}
				}
			}
		}
	}
}
