package exchange

import "context"

// Client is the seam that keeps the copy trader exchange-agnostic. Every
// configured exchange exposes this identical surface; the core never branches
// on which exchange is active.
type Client interface {
	// ==================== ACCOUNT ====================

	// GetAccountInfo retrieves futures account balances.
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)

	// GetPositions retrieves the live positions for a symbol.
	GetPositions(ctx context.Context, symbol string) ([]Position, error)

	// GetAllPositions retrieves all live positions on the account.
	GetAllPositions(ctx context.Context) ([]Position, error)

	// ==================== TRADING ====================

	// PlaceOrder places a new futures order.
	PlaceOrder(ctx context.Context, params OrderParams) (*OrderResponse, error)

	// CancelOrder cancels an existing order.
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	// CancelAllOrders cancels all open orders for a symbol.
	CancelAllOrders(ctx context.Context, symbol string) error

	// GetOpenOrders retrieves open orders for a symbol (empty string for all).
	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)

	// ==================== LEVERAGE & MARGIN ====================

	// SetLeverage sets the leverage for a symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// SetMarginType sets the margin mode for a symbol.
	SetMarginType(ctx context.Context, symbol string, marginType MarginType) error

	// ==================== MARKET DATA ====================

	// GetMarkPrice retrieves the current mark price for a symbol.
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)

	// ==================== PURE HELPERS ====================

	// ConvertSymbol maps a signal-source symbol to the exchange's format.
	ConvertSymbol(symbol string) string

	// FormatQuantity renders a quantity at the symbol's lot-size precision.
	FormatQuantity(symbol string, quantity float64) string

	// FormatPrice renders a price at the symbol's tick-size precision.
	FormatPrice(symbol string, price float64) string
}
