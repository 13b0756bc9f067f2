package allocation

import "math"

// quantityPrecision is the lot-size decimal places for known futures symbols.
// Unknown symbols fall back to defaultPrecision.
var quantityPrecision = map[string]int{
	"BTCUSDT":  3,
	"ETHUSDT":  3,
	"BNBUSDT":  2,
	"SOLUSDT":  2,
	"AVAXUSDT": 1,
	"LINKUSDT": 2,
	"XRPUSDT":  1,
	"LTCUSDT":  3,
	"ADAUSDT":  0,
	"DOGEUSDT": 0,
}

const defaultPrecision = 3

// QuantityPrecision returns the decimal places used for a symbol's quantity.
func QuantityPrecision(symbol string) int {
	if p, ok := quantityPrecision[symbol]; ok {
		return p
	}
	return defaultPrecision
}

// RoundQuantity rounds a quantity to the symbol's precision using round
// half-up on the scaled integer. Quantities round to nearest rather than
// floor because the constraint here is exchange lot-size compliance, not
// budget conservatism.
func RoundQuantity(symbol string, quantity float64) float64 {
	scale := math.Pow10(QuantityPrecision(symbol))
	return math.Floor(quantity*scale+0.5) / scale
}
