// Package exchange defines the exchange-agnostic client surface the copy
// trader executes against, plus the Binance and mock implementations.
package exchange

// Side is the order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// MarginType represents the margin mode for futures trading.
type MarginType string

const (
	MarginTypeCrossed  MarginType = "CROSSED"
	MarginTypeIsolated MarginType = "ISOLATED"
)

// OrderType represents supported futures order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderParams describes a new futures order.
type OrderParams struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      float64
	Price         float64 // limit orders only
	ClientOrderID string
	ReduceOnly    bool
}

// OrderResponse is the exchange acknowledgement for a placed order.
type OrderResponse struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          Side
	Status        string
	ExecutedQty   float64
	AvgPrice      float64
}

// Order is an open order as reported by the exchange.
type Order struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Price         float64
	OrigQty       float64
	ExecutedQty   float64
	Status        string
}

// Position is the user's live futures position for a symbol. A zero Quantity
// means no open position. Quantity is signed: positive long, negative short.
type Position struct {
	Symbol         string
	Quantity       float64
	EntryPrice     float64
	MarkPrice      float64
	Leverage       int
	IsolatedMargin float64
	UnrealizedPnL  float64
	MarginType     MarginType
}

// AccountInfo summarises the futures account balances.
type AccountInfo struct {
	TotalWalletBalance    float64
	TotalMarginBalance    float64
	TotalUnrealizedProfit float64
	AvailableBalance      float64
}
