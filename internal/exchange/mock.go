package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)

// MockClient implements the Client interface in memory for dry-run mode and
// tests. Market orders fill immediately at the provided mark price.
type MockClient struct {
	mu            sync.RWMutex
	balance       float64
	positions     map[string]*Position
	openOrders    map[int64]*Order
	leverage      map[string]int
	marginType    map[string]MarginType
	nextOrderID   int64
	priceProvider func(symbol string) (float64, error)
	placed        []OrderResponse

	// Error injection hooks for tests
	FailPositions bool
	FailOrders    bool
}

// NewMockClient creates a mock exchange client with the given starting
// balance. priceProvider supplies mark prices; nil means every price is 0.
func NewMockClient(initialBalance float64, priceProvider func(symbol string) (float64, error)) *MockClient {
	if priceProvider == nil {
		priceProvider = func(string) (float64, error) { return 0, nil }
	}
	return &MockClient{
		balance:       initialBalance,
		positions:     make(map[string]*Position),
		openOrders:    make(map[int64]*Order),
		leverage:      make(map[string]int),
		marginType:    make(map[string]MarginType),
		nextOrderID:   1000,
		priceProvider: priceProvider,
	}
}

func (c *MockClient) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	unrealized := 0.0
	for _, pos := range c.positions {
		unrealized += pos.UnrealizedPnL
	}
	return &AccountInfo{
		TotalWalletBalance:    c.balance,
		TotalMarginBalance:    c.balance + unrealized,
		TotalUnrealizedProfit: unrealized,
		AvailableBalance:      c.balance,
	}, nil
}

func (c *MockClient) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	if c.FailPositions {
		return nil, fmt.Errorf("mock: position fetch failure")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if pos, ok := c.positions[c.ConvertSymbol(symbol)]; ok {
		return []Position{*pos}, nil
	}
	return nil, nil
}

func (c *MockClient) GetAllPositions(ctx context.Context) ([]Position, error) {
	if c.FailPositions {
		return nil, fmt.Errorf("mock: position fetch failure")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Position, 0, len(c.positions))
	for _, pos := range c.positions {
		out = append(out, *pos)
	}
	return out, nil
}

func (c *MockClient) PlaceOrder(ctx context.Context, params OrderParams) (*OrderResponse, error) {
	if c.FailOrders {
		return nil, fmt.Errorf("mock: order placement failure")
	}
	if params.Quantity <= 0 {
		return nil, fmt.Errorf("mock: quantity must be positive")
	}

	symbol := c.ConvertSymbol(params.Symbol)
	price, err := c.priceProvider(symbol)
	if err != nil {
		return nil, fmt.Errorf("mock: price unavailable for %s: %w", symbol, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextOrderID++
	orderID := c.nextOrderID

	signed := params.Quantity
	if params.Side == SideSell {
		signed = -signed
	}

	pos, ok := c.positions[symbol]
	if !ok {
		pos = &Position{
			Symbol:     symbol,
			EntryPrice: price,
			Leverage:   c.leverage[symbol],
			MarginType: c.marginType[symbol],
		}
		c.positions[symbol] = pos
	}
	pos.Quantity += signed
	pos.MarkPrice = price
	if pos.Quantity == 0 {
		delete(c.positions, symbol)
	}

	resp := OrderResponse{
		OrderID:       orderID,
		ClientOrderID: params.ClientOrderID,
		Symbol:        symbol,
		Side:          params.Side,
		Status:        "FILLED",
		ExecutedQty:   params.Quantity,
		AvgPrice:      price,
	}
	c.placed = append(c.placed, resp)
	return &resp, nil
}

func (c *MockClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.openOrders[orderID]; !ok {
		return fmt.Errorf("mock: order %d not found", orderID)
	}
	delete(c.openOrders, orderID)
	return nil
}

func (c *MockClient) CancelAllOrders(ctx context.Context, symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	converted := c.ConvertSymbol(symbol)
	for id, o := range c.openOrders {
		if o.Symbol == converted {
			delete(c.openOrders, id)
		}
	}
	return nil
}

func (c *MockClient) GetOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	converted := c.ConvertSymbol(symbol)
	out := make([]Order, 0, len(c.openOrders))
	for _, o := range c.openOrders {
		if symbol == "" || o.Symbol == converted {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (c *MockClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 || leverage > 125 {
		return fmt.Errorf("mock: invalid leverage %d", leverage)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leverage[c.ConvertSymbol(symbol)] = leverage
	return nil
}

func (c *MockClient) SetMarginType(ctx context.Context, symbol string, marginType MarginType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marginType[c.ConvertSymbol(symbol)] = marginType
	return nil
}

func (c *MockClient) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	return c.priceProvider(c.ConvertSymbol(symbol))
}

func (c *MockClient) ConvertSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "-", "")
	symbol = strings.ReplaceAll(symbol, "/", "")
	if !strings.HasSuffix(symbol, "USDT") && !strings.HasSuffix(symbol, "USDC") {
		symbol += "USDT"
	}
	return symbol
}

func (c *MockClient) FormatQuantity(symbol string, quantity float64) string {
	decimals, ok := quantityDecimals[c.ConvertSymbol(symbol)]
	if !ok {
		decimals = defaultQuantityDecimals
	}
	return strconv.FormatFloat(quantity, 'f', decimals, 64)
}

func (c *MockClient) FormatPrice(symbol string, price float64) string {
	decimals, ok := priceDecimals[c.ConvertSymbol(symbol)]
	if !ok {
		decimals = defaultPriceDecimals
	}
	return strconv.FormatFloat(price, 'f', decimals, 64)
}

// PlacedOrders returns every order filled so far. Test helper.
func (c *MockClient) PlacedOrders() []OrderResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]OrderResponse, len(c.placed))
	copy(out, c.placed)
	return out
}

// SetPosition seeds a broker position. Test helper.
func (c *MockClient) SetPosition(pos Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos.Symbol = c.ConvertSymbol(pos.Symbol)
	if pos.Quantity == 0 {
		delete(c.positions, pos.Symbol)
		return
	}
	copied := pos
	c.positions[pos.Symbol] = &copied
}
