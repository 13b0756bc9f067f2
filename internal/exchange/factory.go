package exchange

import (
	"fmt"
	"strings"
)

// FactoryConfig selects and configures the active exchange client.
type FactoryConfig struct {
	Exchange    string // "binance" or "mock"
	APIKey      string
	SecretKey   string
	TestNet     bool
	MockBalance float64
	MockPriceFn func(symbol string) (float64, error)
}

// New creates the exchange client named in the configuration. The rest of the
// system only ever sees the Client interface.
func New(cfg FactoryConfig) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Exchange)) {
	case "", "binance":
		if cfg.APIKey == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("binance exchange requires api_key and secret_key")
		}
		return NewBinanceClient(BinanceConfig{
			APIKey:    cfg.APIKey,
			SecretKey: cfg.SecretKey,
			TestNet:   cfg.TestNet,
		}), nil
	case "mock":
		balance := cfg.MockBalance
		if balance <= 0 {
			balance = 10000
		}
		return NewMockClient(balance, cfg.MockPriceFn), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", cfg.Exchange)
	}
}
