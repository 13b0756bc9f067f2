package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/futures"
)

// Ensure BinanceClient implements Client
var _ Client = (*BinanceClient)(nil)

// quantityDecimals holds lot-size precision for common USDT-M futures symbols.
// Unknown symbols fall back to defaultQuantityDecimals.
var quantityDecimals = map[string]int{
	"BTCUSDT":  3,
	"ETHUSDT":  3,
	"BNBUSDT":  2,
	"SOLUSDT":  2,
	"XRPUSDT":  1,
	"ADAUSDT":  0,
	"DOGEUSDT": 0,
}

// priceDecimals holds tick-size precision for common USDT-M futures symbols.
var priceDecimals = map[string]int{
	"BTCUSDT":  1,
	"ETHUSDT":  2,
	"BNBUSDT":  2,
	"SOLUSDT":  3,
	"XRPUSDT":  4,
	"ADAUSDT":  4,
	"DOGEUSDT": 5,
}

const (
	defaultQuantityDecimals = 3
	defaultPriceDecimals    = 2
)

// BinanceClient implements Client for Binance USDT-M futures via the
// go-binance SDK. Request signing, retries and rate limiting are the SDK's
// concern, not ours.
type BinanceClient struct {
	client *futures.Client
}

// BinanceConfig holds Binance API credentials.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	TestNet   bool
}

// NewBinanceClient creates a Binance futures client.
func NewBinanceClient(cfg BinanceConfig) *BinanceClient {
	futures.UseTestnet = cfg.TestNet
	return &BinanceClient{
		client: futures.NewClient(cfg.APIKey, cfg.SecretKey),
	}
}

func (b *BinanceClient) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch futures account: %w", err)
	}
	return &AccountInfo{
		TotalWalletBalance:    parseFloat(acct.TotalWalletBalance),
		TotalMarginBalance:    parseFloat(acct.TotalMarginBalance),
		TotalUnrealizedProfit: parseFloat(acct.TotalUnrealizedProfit),
		AvailableBalance:      parseFloat(acct.AvailableBalance),
	}, nil
}

func (b *BinanceClient) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	risks, err := b.client.NewGetPositionRiskService().Symbol(b.ConvertSymbol(symbol)).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions for %s: %w", symbol, err)
	}
	return convertPositions(risks), nil
}

func (b *BinanceClient) GetAllPositions(ctx context.Context) ([]Position, error) {
	risks, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	return convertPositions(risks), nil
}

func convertPositions(risks []*futures.PositionRisk) []Position {
	out := make([]Position, 0, len(risks))
	for _, r := range risks {
		qty := parseFloat(r.PositionAmt)
		if qty == 0 {
			continue
		}
		marginType := MarginTypeCrossed
		if strings.EqualFold(r.MarginType, "isolated") {
			marginType = MarginTypeIsolated
		}
		out = append(out, Position{
			Symbol:         r.Symbol,
			Quantity:       qty,
			EntryPrice:     parseFloat(r.EntryPrice),
			MarkPrice:      parseFloat(r.MarkPrice),
			Leverage:       int(parseFloat(r.Leverage)),
			IsolatedMargin: parseFloat(r.IsolatedMargin),
			UnrealizedPnL:  parseFloat(r.UnRealizedProfit),
			MarginType:     marginType,
		})
	}
	return out
}

func (b *BinanceClient) PlaceOrder(ctx context.Context, params OrderParams) (*OrderResponse, error) {
	symbol := b.ConvertSymbol(params.Symbol)
	svc := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(params.Side)).
		Type(futures.OrderType(params.Type)).
		Quantity(b.FormatQuantity(symbol, params.Quantity))
	if params.Type == OrderTypeLimit {
		svc = svc.Price(b.FormatPrice(symbol, params.Price)).TimeInForce(futures.TimeInForceTypeGTC)
	}
	if params.ClientOrderID != "" {
		svc = svc.NewClientOrderID(params.ClientOrderID)
	}
	if params.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s %s order: %w", params.Side, symbol, err)
	}
	return &OrderResponse{
		OrderID:       resp.OrderID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Side:          Side(resp.Side),
		Status:        string(resp.Status),
		ExecutedQty:   parseFloat(resp.ExecutedQuantity),
		AvgPrice:      parseFloat(resp.AvgPrice),
	}, nil
}

func (b *BinanceClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	_, err := b.client.NewCancelOrderService().Symbol(b.ConvertSymbol(symbol)).OrderID(orderID).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel order %d on %s: %w", orderID, symbol, err)
	}
	return nil
}

func (b *BinanceClient) CancelAllOrders(ctx context.Context, symbol string) error {
	if err := b.client.NewCancelAllOpenOrdersService().Symbol(b.ConvertSymbol(symbol)).Do(ctx); err != nil {
		return fmt.Errorf("failed to cancel open orders on %s: %w", symbol, err)
	}
	return nil
}

func (b *BinanceClient) GetOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	svc := b.client.NewListOpenOrdersService()
	if symbol != "" {
		svc = svc.Symbol(b.ConvertSymbol(symbol))
	}
	orders, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open orders: %w", err)
	}
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, Order{
			OrderID:       o.OrderID,
			ClientOrderID: o.ClientOrderID,
			Symbol:        o.Symbol,
			Side:          Side(o.Side),
			Type:          OrderType(o.Type),
			Price:         parseFloat(o.Price),
			OrigQty:       parseFloat(o.OrigQuantity),
			ExecutedQty:   parseFloat(o.ExecutedQuantity),
			Status:        string(o.Status),
		})
	}
	return out, nil
}

func (b *BinanceClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := b.client.NewChangeLeverageService().Symbol(b.ConvertSymbol(symbol)).Leverage(leverage).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to set leverage %dx on %s: %w", leverage, symbol, err)
	}
	return nil
}

func (b *BinanceClient) SetMarginType(ctx context.Context, symbol string, marginType MarginType) error {
	err := b.client.NewChangeMarginTypeService().
		Symbol(b.ConvertSymbol(symbol)).
		MarginType(futures.MarginType(marginType)).
		Do(ctx)
	if err != nil {
		// Binance rejects a no-op change with code -4046; not an error for us.
		if strings.Contains(err.Error(), "-4046") || strings.Contains(err.Error(), "No need to change margin type") {
			return nil
		}
		return fmt.Errorf("failed to set margin type %s on %s: %w", marginType, symbol, err)
	}
	return nil
}

func (b *BinanceClient) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	idx, err := b.client.NewPremiumIndexService().Symbol(b.ConvertSymbol(symbol)).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch mark price for %s: %w", symbol, err)
	}
	if len(idx) == 0 {
		return 0, fmt.Errorf("no mark price returned for %s", symbol)
	}
	return parseFloat(idx[0].MarkPrice), nil
}

func (b *BinanceClient) ConvertSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.ReplaceAll(symbol, "-", "")
	symbol = strings.ReplaceAll(symbol, "/", "")
	if !strings.HasSuffix(symbol, "USDT") && !strings.HasSuffix(symbol, "USDC") {
		symbol += "USDT"
	}
	return symbol
}

func (b *BinanceClient) FormatQuantity(symbol string, quantity float64) string {
	decimals, ok := quantityDecimals[b.ConvertSymbol(symbol)]
	if !ok {
		decimals = defaultQuantityDecimals
	}
	return strconv.FormatFloat(quantity, 'f', decimals, 64)
}

func (b *BinanceClient) FormatPrice(symbol string, price float64) string {
	decimals, ok := priceDecimals[b.ConvertSymbol(symbol)]
	if !ok {
		decimals = defaultPriceDecimals
	}
	return strconv.FormatFloat(price, 'f', decimals, 64)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
