package analytics

import (
	"fmt"
	"math"

	"github.com/quantfeed/tradesim/internal/domain"
)

// MarketImpactModel combines book spread and live volatility into a
// temporary+permanent impact estimate: a linear temporary term proportional
// to relative spread and a square-root-law permanent term scaled by
// volatility. The orchestrator pushes volatility updates in; the model never
// reads the tracker directly.
type MarketImpactModel struct {
	volatility   float64
	riskAversion float64
}

// NewMarketImpactModel creates an impact model with an initial volatility.
// riskAversion is reserved for a staged-execution trajectory and does not
// affect the headline impact numbers.
func NewMarketImpactModel(volatility, riskAversion float64) *MarketImpactModel {
	return &MarketImpactModel{volatility: volatility, riskAversion: riskAversion}
}

// SetVolatility replaces the volatility used for the permanent impact term.
func (m *MarketImpactModel) SetVolatility(v float64) { m.volatility = v }

// Volatility returns the model's current volatility input.
func (m *MarketImpactModel) Volatility() float64 { return m.volatility }

// CalculateImpact estimates the execution impact of quantity against the
// snapshot:
//
//	temporary = (spread/mid) * quantity
//	permanent = volatility * sqrt(quantity)
//	estimatedExecutionPrice = mid * (1 + temporary + permanent)
//
// Deterministic given spread, mid, quantity, and volatility. Returns
// ErrOneSidedBook when no mid can be derived.
func (m *MarketImpactModel) CalculateImpact(snap domain.BookSnapshot, quantity float64) (domain.MarketImpact, error) {
	mid := snap.Mid()
	if mid <= 0 {
		return domain.MarketImpact{}, fmt.Errorf("impact %s: %w", snap.Symbol, domain.ErrOneSidedBook)
	}

	temporary := (snap.Spread() / mid) * quantity
	permanent := m.volatility * math.Sqrt(quantity)
	total := temporary + permanent

	return domain.MarketImpact{
		Temporary:               temporary,
		Permanent:               permanent,
		Total:                   total,
		EstimatedExecutionPrice: mid * (1 + total),
	}, nil
}
