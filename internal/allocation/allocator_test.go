package allocation

import (
	"math"
	"testing"

	"copytrade-bot/internal/signal"

	"github.com/rs/zerolog"
)

func pos(symbol string, qty, margin float64, leverage int, price float64) signal.Position {
	return signal.Position{
		Symbol:       symbol,
		Quantity:     qty,
		Margin:       margin,
		Leverage:     leverage,
		EntryPrice:   price,
		CurrentPrice: price,
		EntryOrderID: "oid-" + symbol,
	}
}

// TestNewPolicyRejectsBoth verifies conflicting budget options fail fast
func TestNewPolicyRejectsBoth(t *testing.T) {
	if _, err := NewPolicy(1000, 100, 0, 0); err != ErrConflictingPolicy {
		t.Errorf("Expected ErrConflictingPolicy, got %v", err)
	}
}

// TestNewPolicyRequiresOne verifies an empty capital config is rejected
func TestNewPolicyRequiresOne(t *testing.T) {
	if _, err := NewPolicy(0, 0, 0, 0); err != ErrNoPolicy {
		t.Errorf("Expected ErrNoPolicy, got %v", err)
	}
}

// TestNewPolicySelectsVariant verifies the tagged variant matches the inputs
func TestNewPolicySelectsVariant(t *testing.T) {
	p, err := NewPolicy(1000, 0, 0, 5000)
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	if _, ok := p.(Proportional); !ok {
		t.Errorf("Expected Proportional, got %T", p)
	}

	p, err = NewPolicy(0, 100, 250, 0)
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	fixed, ok := p.(Fixed)
	if !ok {
		t.Fatalf("Expected Fixed, got %T", p)
	}
	if fixed.MaxTotalMargin != 250 {
		t.Errorf("Expected MaxTotalMargin 250, got %v", fixed.MaxTotalMargin)
	}
}

// TestProportionalAllocation verifies ratio sum and floor-bounded margin totals
func TestProportionalAllocation(t *testing.T) {
	a := NewAllocator(Proportional{TotalMargin: 1000}, zerolog.Nop())

	positions := []signal.Position{
		pos("BTCUSDT", 0.5, 248.66, 10, 50000),
		pos("ETHUSDT", -2, 205.80, 10, 3000),
		pos("SOLUSDT", 30, 201.16, 5, 150),
	}
	res := a.Allocate(positions)

	if len(res.Allocations) != 3 {
		t.Fatalf("Expected 3 allocations, got %d", len(res.Allocations))
	}

	ratioSum := 0.0
	marginSum := 0.0
	for _, alloc := range res.Allocations {
		ratioSum += alloc.AllocationRatio
		marginSum += alloc.AllocatedMargin
	}
	if math.Abs(ratioSum-1) > 0.001 {
		t.Errorf("Ratio sum %.6f not within 0.001 of 1.0", ratioSum)
	}
	if marginSum > 1000 {
		t.Errorf("Allocated margin %.2f exceeds the budget", marginSum)
	}
	if err := ValidateAllocation(res, 1000); err != nil {
		t.Errorf("ValidateAllocation failed: %v", err)
	}
}

// TestProportionalSideFromQuantitySign verifies side derivation
func TestProportionalSideFromQuantitySign(t *testing.T) {
	a := NewAllocator(Proportional{TotalMargin: 1000}, zerolog.Nop())

	res := a.Allocate([]signal.Position{
		pos("BTCUSDT", 0.5, 100, 10, 50000),
		pos("ETHUSDT", -2, 100, 10, 3000),
	})

	if res.Allocations[0].Side != "BUY" {
		t.Errorf("Positive quantity should be BUY, got %s", res.Allocations[0].Side)
	}
	if res.Allocations[1].Side != "SELL" {
		t.Errorf("Negative quantity should be SELL, got %s", res.Allocations[1].Side)
	}
}

// TestProportionalClampsToAvailableBalance verifies graceful degradation
func TestProportionalClampsToAvailableBalance(t *testing.T) {
	a := NewAllocator(Proportional{TotalMargin: 1000, AvailableBalance: 400}, zerolog.Nop())

	res := a.Allocate([]signal.Position{
		pos("BTCUSDT", 0.5, 100, 10, 50000),
		pos("ETHUSDT", 1, 100, 10, 3000),
	})

	marginSum := 0.0
	for _, alloc := range res.Allocations {
		marginSum += alloc.AllocatedMargin
	}
	if marginSum > 400 {
		t.Errorf("Allocated margin %.2f exceeds available balance 400", marginSum)
	}
}

// TestProportionalExcludesDeadSignals verifies zero-margin/zero-quantity filtering
func TestProportionalExcludesDeadSignals(t *testing.T) {
	a := NewAllocator(Proportional{TotalMargin: 1000}, zerolog.Nop())

	res := a.Allocate([]signal.Position{
		pos("BTCUSDT", 0.5, 100, 10, 50000),
		pos("ETHUSDT", 0, 100, 10, 3000), // zero quantity
		pos("SOLUSDT", 30, 0, 5, 150),    // zero margin
	})

	if len(res.Allocations) != 1 {
		t.Errorf("Expected only the live position allocated, got %d", len(res.Allocations))
	}
}

// TestProportionalFloorsMarginAndNotional verifies the documented rounding policy
func TestProportionalFloorsMarginAndNotional(t *testing.T) {
	a := NewAllocator(Proportional{TotalMargin: 1000}, zerolog.Nop())

	res := a.Allocate([]signal.Position{
		pos("BTCUSDT", 0.5, 1, 3, 50000),
		pos("ETHUSDT", 1, 2, 3, 3000),
	})

	for _, alloc := range res.Allocations {
		if alloc.AllocatedMargin != math.Floor(alloc.AllocatedMargin) {
			t.Errorf("%s allocated margin %.4f not floored", alloc.Symbol, alloc.AllocatedMargin)
		}
		if alloc.NotionalValue != math.Floor(alloc.NotionalValue) {
			t.Errorf("%s notional %.4f not floored", alloc.Symbol, alloc.NotionalValue)
		}
	}
}

// TestFixedAllocationFundsInOrder: 100 per coin, 250 max, 3 positions ->
// exactly the first 2 funded at exactly 100
func TestFixedAllocationFundsInOrder(t *testing.T) {
	a := NewAllocator(Fixed{AmountPerCoin: 100, MaxTotalMargin: 250}, zerolog.Nop())

	positions := []signal.Position{
		pos("BTCUSDT", 0.5, 300, 10, 50000),
		pos("ETHUSDT", 1, 200, 10, 3000),
		pos("SOLUSDT", 30, 100, 5, 150),
	}
	res := a.Allocate(positions)

	if len(res.Allocations) != 2 {
		t.Fatalf("Expected exactly 2 funded positions, got %d", len(res.Allocations))
	}
	if res.Allocations[0].Symbol != "BTCUSDT" || res.Allocations[1].Symbol != "ETHUSDT" {
		t.Errorf("Funding must follow input order, got %s, %s", res.Allocations[0].Symbol, res.Allocations[1].Symbol)
	}
	for _, alloc := range res.Allocations {
		if alloc.AllocatedMargin != 100 {
			t.Errorf("%s allocated %.2f, expected exactly 100", alloc.Symbol, alloc.AllocatedMargin)
		}
	}
	if err := ValidateFixedAllocation(res, 100); err != nil {
		t.Errorf("ValidateFixedAllocation failed: %v", err)
	}
	if res.Warning == "" {
		t.Error("Partial funding should carry a warning")
	}
}

// TestFixedAllocationEmptyWhenUnaffordable verifies the zero-funding warning path
func TestFixedAllocationEmptyWhenUnaffordable(t *testing.T) {
	a := NewAllocator(Fixed{AmountPerCoin: 100, AvailableBalance: 50}, zerolog.Nop())

	res := a.Allocate([]signal.Position{pos("BTCUSDT", 0.5, 300, 10, 50000)})

	if len(res.Allocations) != 0 {
		t.Errorf("Expected no allocations, got %d", len(res.Allocations))
	}
	if res.Warning == "" {
		t.Error("Expected an insufficient-margin warning")
	}
}

// TestRoundQuantityHalfUp verifies the scaled-integer round-half-up rule
func TestRoundQuantityHalfUp(t *testing.T) {
	cases := []struct {
		symbol string
		in     float64
		want   float64
	}{
		{"BTCUSDT", 0.0046, 0.005}, // 3 decimals
		{"BTCUSDT", 0.0044, 0.004},
		{"BNBUSDT", 1.256, 1.26},   // 2 decimals
		{"DOGEUSDT", 1523.5, 1524}, // exact half rounds up
		{"DOGEUSDT", 1523.4, 1523},
		{"UNKNOWN", 0.12345, 0.123}, // default 3 decimals
	}
	for _, tc := range cases {
		if got := RoundQuantity(tc.symbol, tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("RoundQuantity(%s, %v) = %v, want %v", tc.symbol, tc.in, got, tc.want)
		}
	}
}
