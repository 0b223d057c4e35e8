package domain

import (
	"fmt"
	"math"
)

// WeightTolerance is the maximum deviation of the weight sum from 1.0
// accepted at construction time.
const WeightTolerance = 1e-9

// PortfolioAsset is one asset of a fixed-weight portfolio
type PortfolioAsset struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// Portfolio is an ordered set of assets with fixed target weights.
// Validated once at construction and immutable thereafter; ordering is the
// declaration order and determines deterministic iteration.
type Portfolio struct {
	assets []PortfolioAsset
}

// NewPortfolio creates a portfolio from ordered assets and validates it:
// at least one asset, no duplicates, every weight in (0, 1], and the sum
// of weights equal to 1.0 within WeightTolerance.
func NewPortfolio(assets []PortfolioAsset) (*Portfolio, error) {
	if len(assets) == 0 {
		return nil, NewConfigError("portfolio", "no assets")
	}

	seen := make(map[string]bool, len(assets))
	sum := 0.0
	for _, a := range assets {
		if a.Symbol == "" {
			return nil, NewConfigError("portfolio", "empty symbol")
		}
		if seen[a.Symbol] {
			return nil, NewConfigError("portfolio", fmt.Sprintf("duplicate symbol %s", a.Symbol))
		}
		seen[a.Symbol] = true

		if a.Weight <= 0 || a.Weight > 1 || math.IsNaN(a.Weight) {
			return nil, NewConfigError("portfolio", fmt.Sprintf("weight for %s must be in (0, 1], got %v", a.Symbol, a.Weight))
		}
		sum += a.Weight
	}

	if math.Abs(sum-1.0) > WeightTolerance {
		return nil, NewConfigError("portfolio", fmt.Sprintf("weights sum to %.12f, want 1.0 within %g", sum, WeightTolerance))
	}

	p := &Portfolio{assets: make([]PortfolioAsset, len(assets))}
	copy(p.assets, assets)
	return p, nil
}

// Assets returns the assets in declaration order
func (p *Portfolio) Assets() []PortfolioAsset {
	out := make([]PortfolioAsset, len(p.assets))
	copy(out, p.assets)
	return out
}

// Symbols returns the asset symbols in declaration order
func (p *Portfolio) Symbols() []string {
	out := make([]string, len(p.assets))
	for i, a := range p.assets {
		out[i] = a.Symbol
	}
	return out
}

// Weight returns the target weight for a symbol, or 0 if absent
func (p *Portfolio) Weight(symbol string) float64 {
	for _, a := range p.assets {
		if a.Symbol == symbol {
			return a.Weight
		}
	}
	return 0
}

// Contains reports whether the portfolio references the symbol
func (p *Portfolio) Contains(symbol string) bool {
	for _, a := range p.assets {
		if a.Symbol == symbol {
			return true
		}
	}
	return false
}

// Len returns the number of assets
func (p *Portfolio) Len() int {
	return len(p.assets)
}
