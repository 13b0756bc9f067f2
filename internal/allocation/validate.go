package allocation

import (
	"fmt"
	"math"
)

// ratioEpsilon bounds the allowed drift of the allocation ratio sum from 1.
const ratioEpsilon = 1e-3

// ValidateAllocation sanity-checks a proportional result against the
// requested budget. The margin tolerance is deliberately generous: each
// position's floor can drop up to one unit, so the shortfall compounds with
// the number of positions and is never an error by itself. Total allocated
// margin exceeding the budget, however, always is.
func ValidateAllocation(res Result, totalMargin float64) error {
	if len(res.Allocations) == 0 {
		return nil
	}

	ratioSum := 0.0
	marginSum := 0.0
	for _, alloc := range res.Allocations {
		ratioSum += alloc.AllocationRatio
		marginSum += alloc.AllocatedMargin
	}

	if math.Abs(ratioSum-1) > ratioEpsilon {
		return fmt.Errorf("allocation ratios sum to %.6f, expected 1.0 within %.0e", ratioSum, ratioEpsilon)
	}
	if marginSum > totalMargin {
		return fmt.Errorf("allocated margin %.2f exceeds budget %.2f", marginSum, totalMargin)
	}
	tolerance := float64(len(res.Allocations)) + 1
	if totalMargin-marginSum > tolerance {
		return fmt.Errorf("allocated margin %.2f short of budget %.2f beyond tolerance %.2f", marginSum, totalMargin, tolerance)
	}
	return nil
}

// ValidateFixedAllocation checks every funded entry equals the fixed amount
// exactly.
func ValidateFixedAllocation(res Result, amountPerCoin float64) error {
	for _, alloc := range res.Allocations {
		if alloc.AllocatedMargin != amountPerCoin {
			return fmt.Errorf("%s allocated %.2f, expected exactly %.2f", alloc.Symbol, alloc.AllocatedMargin, amountPerCoin)
		}
	}
	return nil
}
