package risk

// Leverage bands for the informational risk score. The score never blocks
// execution on its own; it is surfaced in logs and notifications so the
// operator can see how aggressive the mirrored agent is running.
const (
	lowLeverageCeiling    = 5
	mediumLeverageCeiling = 20
	maxScoredLeverage     = 125
)

// Risk levels reported alongside the score.
const (
	LevelLow    = "LOW"
	LevelMedium = "MEDIUM"
	LevelHigh   = "HIGH"
)

// LeverageScore maps leverage onto [0,1].
func LeverageScore(leverage int) float64 {
	if leverage <= 0 {
		return 0
	}
	if leverage >= maxScoredLeverage {
		return 1
	}
	return float64(leverage) / maxScoredLeverage
}

// LeverageLevel buckets leverage into LOW / MEDIUM / HIGH.
func LeverageLevel(leverage int) string {
	switch {
	case leverage <= lowLeverageCeiling:
		return LevelLow
	case leverage <= mediumLeverageCeiling:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Verdict is the combined execution decision for one allocated order.
type Verdict struct {
	Tolerance ToleranceResult
	RiskScore float64
	RiskLevel string
	Execute   bool
	Reason    string
}

// Evaluate runs the price-tolerance check and attaches the informational
// leverage risk score. Only the tolerance outcome gates execution.
func Evaluate(entry, current float64, side string, tolerancePct float64, leverage int) (Verdict, error) {
	tol, err := CheckTolerance(entry, current, side, tolerancePct)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{
		Tolerance: tol,
		RiskScore: LeverageScore(leverage),
		RiskLevel: LeverageLevel(leverage),
		Execute:   tol.ShouldExecute,
		Reason:    tol.Reason,
	}, nil
}
