// Package allocation converts the agent's proportional position sizes into
// the user's absolute margin budget under one of two capital policies.
package allocation

import "errors"

// Policy configuration errors. These fail fast, before any allocation runs.
var (
	ErrConflictingPolicy = errors.New("total margin and fixed amount per coin are mutually exclusive")
	ErrNoPolicy          = errors.New("either total margin or fixed amount per coin must be set")
	ErrInvalidBudget     = errors.New("capital budget must be positive")
)

// Policy is the capital allocation strategy, chosen once at startup. Exactly
// one of the two variants exists for a run; the constructor rejects configs
// that supply both.
type Policy interface {
	isPolicy()
}

// Proportional distributes TotalMargin across positions in proportion to the
// agent's own margin per position. AvailableBalance, when positive, caps the
// budget at what the account actually holds.
type Proportional struct {
	TotalMargin      float64
	AvailableBalance float64
}

func (Proportional) isPolicy() {}

// Fixed funds each position with exactly AmountPerCoin, first come first
// served in signal order, until the usable budget runs out. MaxTotalMargin
// and AvailableBalance, when positive, cap the usable budget.
type Fixed struct {
	AmountPerCoin    float64
	MaxTotalMargin   float64
	AvailableBalance float64
}

func (Fixed) isPolicy() {}

// NewPolicy builds the policy from CLI/config values. totalMargin and
// fixedAmount are mutually exclusive; supplying both is a configuration
// error rejected before any allocation or I/O.
func NewPolicy(totalMargin, fixedAmount, maxTotalMargin, availableBalance float64) (Policy, error) {
	switch {
	case totalMargin > 0 && fixedAmount > 0:
		return nil, ErrConflictingPolicy
	case totalMargin > 0:
		return Proportional{TotalMargin: totalMargin, AvailableBalance: availableBalance}, nil
	case fixedAmount > 0:
		return Fixed{AmountPerCoin: fixedAmount, MaxTotalMargin: maxTotalMargin, AvailableBalance: availableBalance}, nil
	case totalMargin < 0 || fixedAmount < 0:
		return nil, ErrInvalidBudget
	default:
		return nil, ErrNoPolicy
	}
}
