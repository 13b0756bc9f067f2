// Package risk decides whether an allocated order is still safe to execute
// given price drift since the signal was observed, and tracks account-level
// execution limits.
package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidEntryPrice is returned when a price difference is requested
// against a non-positive entry price. This is a configuration-class error:
// fail fast, before any I/O.
var ErrInvalidEntryPrice = errors.New("entry price must be positive")

// DirectionalPriceDifference returns the signed percentage move from entry
// to current: positive when the price rose, negative when it fell.
func DirectionalPriceDifference(entry, current float64) (float64, error) {
	if entry <= 0 {
		return 0, ErrInvalidEntryPrice
	}
	return (current - entry) / entry * 100, nil
}

// AbsolutePriceDifference returns the unsigned percentage move.
func AbsolutePriceDifference(entry, current float64) (float64, error) {
	d, err := DirectionalPriceDifference(entry, current)
	if err != nil {
		return 0, err
	}
	return math.Abs(d), nil
}

// ToleranceResult is the price-tolerance verdict for one order.
type ToleranceResult struct {
	EntryPrice                 float64
	CurrentPrice               float64
	PriceDifference            float64 // unsigned, percent
	DirectionalPriceDifference float64 // signed, percent
	Tolerance                  float64 // percent
	WithinTolerance            bool
	FavorableForExecution      bool
	ShouldExecute              bool
	Reason                     string
}

// CheckTolerance evaluates the price drift between the price at signal time
// and the current market price. A drift beyond the tolerance is still
// executable when it moved in the trade's favor (a better entry than
// signaled); it blocks only when it exceeds tolerance and moved against the
// position. side is BUY, SELL, or empty when direction is unknown.
func CheckTolerance(entry, current float64, side string, tolerancePct float64) (ToleranceResult, error) {
	directional, err := DirectionalPriceDifference(entry, current)
	if err != nil {
		return ToleranceResult{}, err
	}

	res := ToleranceResult{
		EntryPrice:                 entry,
		CurrentPrice:               current,
		DirectionalPriceDifference: directional,
		PriceDifference:            math.Abs(directional),
		Tolerance:                  tolerancePct,
	}
	res.WithinTolerance = res.PriceDifference <= tolerancePct

	switch side {
	case "BUY":
		res.FavorableForExecution = directional <= 0
	case "SELL":
		res.FavorableForExecution = directional >= 0
	}

	res.ShouldExecute = res.WithinTolerance || res.FavorableForExecution

	switch {
	case res.WithinTolerance:
		res.Reason = fmt.Sprintf("price drift %.2f%% is within the %.2f%% tolerance", res.PriceDifference, tolerancePct)
	case res.FavorableForExecution:
		res.Reason = fmt.Sprintf("price drift %.2f%% exceeds the %.2f%% tolerance but moved in the trade's favor", res.PriceDifference, tolerancePct)
	default:
		res.Reason = fmt.Sprintf("price drift %.2f%% exceeds the %.2f%% tolerance and moved against the position", res.PriceDifference, tolerancePct)
	}
	return res, nil
}
