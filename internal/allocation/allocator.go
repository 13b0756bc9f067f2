package allocation

import (
	"math"

	"copytrade-bot/internal/logging"
	"copytrade-bot/internal/signal"

	"github.com/rs/zerolog"
)

// Allocation is the per-symbol sizing result submitted for execution.
type Allocation struct {
	Symbol           string
	Side             string // BUY or SELL, from the sign of the signal quantity
	Leverage         int
	OriginalMargin   float64 // the agent's own margin for the position
	AllocatedMargin  float64 // the user's margin, floored
	NotionalValue    float64 // allocatedMargin * leverage, floored
	AdjustedQuantity float64 // notional / current price, rounded to lot size
	AllocationRatio  float64 // share of the total budget, proportional only
}

// Result is the outcome of one allocation run. An insufficient budget is not
// an error: it degrades to a partial or empty result with a warning.
type Result struct {
	Allocations []Allocation
	Warning     string
}

// Allocator sizes new positions under the configured capital policy.
type Allocator struct {
	policy Policy
	logger zerolog.Logger
}

// NewAllocator creates an allocator for the given policy.
func NewAllocator(policy Policy, logger zerolog.Logger) *Allocator {
	return &Allocator{
		policy: policy,
		logger: logging.Component(logger, "Allocator"),
	}
}

// Allocate sizes the given positions. Input order is preserved: under the
// fixed policy it decides which symbols get funded when capital is short.
// Zero-quantity and zero-margin signals are excluded before allocation.
func (a *Allocator) Allocate(positions []signal.Position) Result {
	eligible := make([]signal.Position, 0, len(positions))
	for _, pos := range positions {
		if pos.Live() && pos.CurrentPrice > 0 {
			eligible = append(eligible, pos)
		}
	}
	if len(eligible) == 0 {
		return Result{}
	}

	switch p := a.policy.(type) {
	case Proportional:
		return a.allocateProportional(p, eligible)
	case Fixed:
		return a.allocateFixed(p, eligible)
	default:
		return Result{Warning: "no allocation policy configured"}
	}
}

// allocateProportional splits the budget in proportion to the agent's own
// margin per position. Margin and notional are floored so the allocator
// never requests more capital than budgeted; the quantity step rounds to
// nearest for lot-size compliance.
func (a *Allocator) allocateProportional(p Proportional, positions []signal.Position) Result {
	var res Result

	total := p.TotalMargin
	if p.AvailableBalance > 0 && total > p.AvailableBalance {
		a.logger.Warn().
			Float64("total_margin", total).
			Float64("available", p.AvailableBalance).
			Msg("Budget exceeds available balance, degrading to available")
		total = p.AvailableBalance
	}

	marginSum := 0.0
	for _, pos := range positions {
		marginSum += pos.Margin
	}
	if marginSum <= 0 {
		return Result{Warning: "no positions with positive margin to allocate"}
	}

	for _, pos := range positions {
		ratio := pos.Margin / marginSum
		allocated := math.Floor(total * ratio)
		notional := math.Floor(allocated * float64(pos.Leverage))
		qty := RoundQuantity(pos.Symbol, notional/pos.CurrentPrice)

		res.Allocations = append(res.Allocations, Allocation{
			Symbol:           pos.Symbol,
			Side:             pos.Side(),
			Leverage:         pos.Leverage,
			OriginalMargin:   pos.Margin,
			AllocatedMargin:  allocated,
			NotionalValue:    notional,
			AdjustedQuantity: qty,
			AllocationRatio:  ratio,
		})
	}
	return res
}

// allocateFixed funds the first maxSymbols positions, in their given order,
// with exactly the fixed amount each; the rest receive nothing and are
// absent from the result.
func (a *Allocator) allocateFixed(p Fixed, positions []signal.Position) Result {
	var res Result

	usable := p.AmountPerCoin * float64(len(positions))
	if p.MaxTotalMargin > 0 && p.MaxTotalMargin < usable {
		usable = p.MaxTotalMargin
	}
	if p.AvailableBalance > 0 && p.AvailableBalance < usable {
		usable = p.AvailableBalance
	}

	maxSymbols := int(math.Floor(usable / p.AmountPerCoin))
	if maxSymbols <= 0 {
		return Result{Warning: "insufficient margin for any position"}
	}
	if maxSymbols < len(positions) {
		res.Warning = "insufficient margin to fund all positions"
		a.logger.Warn().
			Int("eligible", len(positions)).
			Int("funded", maxSymbols).
			Msg("Fixed allocation budget funds only part of the position set")
	}

	for _, pos := range positions[:min(maxSymbols, len(positions))] {
		notional := math.Floor(p.AmountPerCoin * float64(pos.Leverage))
		qty := RoundQuantity(pos.Symbol, notional/pos.CurrentPrice)

		res.Allocations = append(res.Allocations, Allocation{
			Symbol:           pos.Symbol,
			Side:             pos.Side(),
			Leverage:         pos.Leverage,
			OriginalMargin:   pos.Margin,
			AllocatedMargin:  p.AmountPerCoin,
			NotionalValue:    notional,
			AdjustedQuantity: qty,
		})
	}
	return res
}
