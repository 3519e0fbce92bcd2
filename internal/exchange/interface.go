package exchange

import (
	"context"

	"github.com/tradepipe/internal/models"
)

// MarketKind classifies an instrument.
type MarketKind string

const (
	MarketKindSpot      MarketKind = "spot"
	MarketKindPerpetual MarketKind = "perpetual"
	MarketKindFutures   MarketKind = "futures"
)

// Balance is the per-asset account balance.
type Balance struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is a snapshot of bids and asks for one instrument. Bids are
// ordered best (highest) first, asks best (lowest) first.
type OrderBook struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp int64       `json:"timestamp"`
}

// Ticker is the current top-of-book and last trade price.
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	Timestamp int64   `json:"timestamp"`
}

// FundingRate is the current funding state of a perpetual instrument.
type FundingRate struct {
	Symbol     string  `json:"symbol"`
	Rate       float64 `json:"funding_rate"`
	Timestamp  int64   `json:"funding_timestamp"`
	IntervalMs int64   `json:"funding_interval_ms"`
}

// MarketMetadata carries the unit semantics of an instrument.
type MarketMetadata struct {
	Symbol       string     `json:"symbol"`
	Kind         MarketKind `json:"kind"`
	ContractSize float64    `json:"contract_size"`
}

// Adapter is the normalized per-exchange capability contract the pipeline
// consumes. Implementations are constructed per request with that user's
// credentials and sandbox mode; any call may fail with a transport or
// exchange error, which callers convert to structured results.
type Adapter interface {
	Name() string

	GetBalances(ctx context.Context) (map[string]Balance, error)
	PlaceMarketOrder(ctx context.Context, nativeSymbol, side string, amount float64) (*models.Order, error)
	PlaceLimitOrder(ctx context.Context, nativeSymbol, side string, amount, price float64) (*models.Order, error)
	GetOrder(ctx context.Context, orderID, nativeSymbol string) (*models.Order, error)
	GetOrderBook(ctx context.Context, nativeSymbol string, depth int) (*OrderBook, error)
	GetTicker(ctx context.Context, nativeSymbol string) (*Ticker, error)
	GetFundingRate(ctx context.Context, nativeSymbol string) (*FundingRate, error)
	GetMarketMetadata(ctx context.Context, nativeSymbol string) (*MarketMetadata, error)
}

// Multiplier converts one contract unit into underlying-asset quantity.
// Non-derivative instruments trade the underlying directly.
func (m *MarketMetadata) Multiplier() float64 {
	if m == nil || m.Kind == MarketKindSpot || m.ContractSize <= 0 {
		return 1.0
	}
	return m.ContractSize
}
