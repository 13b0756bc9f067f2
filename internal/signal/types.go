// Package signal provides the client for the external signal source that
// reports an AI trading agent's open futures positions.
package signal

// Position is one agent position as reported by the signal source. The sign
// of Quantity encodes the side: positive is long, negative is short. The
// entry order id distinguishes one position-opening event from the next for
// the same symbol; an unchanged id across polls means the same position.
type Position struct {
	Symbol            string  `json:"symbol"`
	Quantity          float64 `json:"quantity"`
	Leverage          int     `json:"leverage"`
	Margin            float64 `json:"margin"`
	EntryPrice        float64 `json:"entry_price"`
	CurrentPrice      float64 `json:"current_price"`
	EntryOrderID      string  `json:"entry_oid"`
	TakeProfitOrderID string  `json:"tp_oid"`
	StopLossOrderID   string  `json:"sl_oid"`
}

// Side returns BUY for long positions and SELL for short positions.
func (p Position) Side() string {
	if p.Quantity < 0 {
		return "SELL"
	}
	return "BUY"
}

// Live reports whether the position is actionable: non-zero quantity and a
// positive margin.
func (p Position) Live() bool {
	return p.Quantity != 0 && p.Margin > 0
}
