package formulas

import (
	"math"
	"sort"
	"time"
)

// Cashflow is a dated, signed cashflow.
// Convention: negative = investor contribution, positive = investor inflow.
type Cashflow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// XNPV computes the net present value of dated cashflows at the given
// annualized rate, discounting by calendar-day year fractions from the first
// cashflow's date
//
// Formula: Σ cf_i / (1+rate)^((t_i - t_0).days / 365.25)
//
// Rates at or below -100% discount to an infinite factor, so XNPV returns +Inf
// there; the bisection solver relies on that to keep its bracket valid.
func XNPV(rate float64, cashflows []Cashflow) float64 {
	if len(cashflows) == 0 {
		return 0.0
	}
	if rate <= -1.0 {
		return math.Inf(1)
	}

	t0 := cashflows[0].Date
	total := 0.0
	for _, cf := range cashflows {
		days := cf.Date.Sub(t0).Hours() / 24.0
		total += cf.Amount / math.Pow(1.0+rate, days/365.25)
	}
	return total
}

// CalculateXIRR computes the annualized internal rate of return for dated
// cashflows using bisection
//
// The solver evaluates XNPV at a fixed low bound (-0.9999) and walks an
// ascending candidate list until a sign change brackets a root, then bisects
// for at most 200 iterations or until |XNPV| < 1e-10.
//
// Args:
//
//	cashflows: Dated signed flows (contributions negative, inflows positive)
//
// Returns:
//
//	Annualized rate as decimal (0.10 = 10%) or nil when indeterminate: fewer
//	than two flows, all flows of one sign, or no candidate brackets a root
func CalculateXIRR(cashflows []Cashflow) *float64 {
	const maxIter = 200

	if len(cashflows) < 2 {
		return nil
	}

	flows := make([]Cashflow, len(cashflows))
	copy(flows, cashflows)
	sort.Slice(flows, func(i, j int) bool { return flows[i].Date.Before(flows[j].Date) })

	hasPos := false
	hasNeg := false
	for _, cf := range flows {
		if cf.Amount > 0 {
			hasPos = true
		}
		if cf.Amount < 0 {
			hasNeg = true
		}
	}
	if !hasPos || !hasNeg {
		return nil
	}

	lo := -0.9999
	hiCandidates := []float64{0.0, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 50.0, 100.0}

	fLo := XNPV(lo, flows)
	var hi float64
	found := false
	for _, cand := range hiCandidates {
		fCand := XNPV(cand, flows)
		if fLo == 0 {
			return &lo
		}
		if fCand == 0 {
			c := cand
			return &c
		}
		if (fLo > 0 && fCand < 0) || (fLo < 0 && fCand > 0) {
			hi = cand
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	for i := 0; i < maxIter; i++ {
		mid := (lo + hi) / 2.0
		fMid := XNPV(mid, flows)
		if math.Abs(fMid) < 1e-10 {
			return &mid
		}
		if (fLo > 0 && fMid < 0) || (fLo < 0 && fMid > 0) {
			hi = mid
		} else {
			lo = mid
			fLo = fMid
		}
	}

	result := (lo + hi) / 2.0
	return &result
}
