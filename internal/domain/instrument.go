package domain

import "strings"

// TradingPair describes a tradable perpetual market.
type TradingPair struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	BaseAsset    string  `json:"base_asset"`
	QuoteAsset   string  `json:"quote_asset"`
	Precision    int     `json:"precision"`
	MinOrderSize float64 `json:"min_order_size"`
	Change24h    float64 `json:"change_24h"`
}

// Symbol is the concatenated base and quote asset, e.g. SUIUSDT.
func (p TradingPair) Symbol() string {
	return p.BaseAsset + p.QuoteAsset
}

// DefaultPairs is the built-in market catalogue.
func DefaultPairs() []TradingPair {
	return []TradingPair{
		{ID: "sui-usdt", Name: "SUI/USDT", BaseAsset: "SUI", QuoteAsset: "USDT", Precision: 4, MinOrderSize: 0.01, Change24h: 2.45},
		{ID: "usdt-sui", Name: "USDT/SUI", BaseAsset: "USDT", QuoteAsset: "SUI", Precision: 4, MinOrderSize: 0.01, Change24h: -1.23},
		{ID: "btc-usdt", Name: "BTC/USDT", BaseAsset: "BTC", QuoteAsset: "USDT", Precision: 2, MinOrderSize: 0.001, Change24h: 3.75},
		{ID: "eth-usdt", Name: "ETH/USDT", BaseAsset: "ETH", QuoteAsset: "USDT", Precision: 2, MinOrderSize: 0.01, Change24h: 1.89},
	}
}

// FindPair looks a pair up by ID or name, case-insensitively.
func FindPair(pairs []TradingPair, key string) (TradingPair, error) {
	for _, p := range pairs {
		if strings.EqualFold(p.ID, key) || strings.EqualFold(p.Name, key) || strings.EqualFold(p.Symbol(), key) {
			return p, nil
		}
	}
	return TradingPair{}, ErrUnknownPair
}
