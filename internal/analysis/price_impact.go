package analysis

import (
	"errors"
	"strings"

	"github.com/tradepipe/internal/exchange"
)

var (
	ErrEmptyOrderBook        = errors.New("order book is empty")
	ErrInvalidVolume         = errors.New("trade volume must be positive")
	ErrInvalidSide           = errors.New("side must be buy or sell")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for requested volume")
)

// PriceImpactResult is the estimated execution cost of a trade of a target
// notional size against a live order book.
type PriceImpactResult struct {
	Status             string  `json:"status"`
	TradeVolumeQuote   float64 `json:"trade_volume_quote"`
	AvgExecutionPrice  float64 `json:"avg_execution_price"`
	MidPrice           float64 `json:"mid_price"`
	PriceImpactPercent float64 `json:"price_impact_percent"`
	BaseQuantityFilled float64 `json:"base_quantity_filled"`
}

// EstimatePriceImpact walks the book side facing the trade, accumulating
// base quantity until the target quote notional is filled. A buy consumes
// asks from the best (lowest) up; a sell consumes bids from the best
// (highest) down. The impact percentage is signed so that a positive value
// always means worse-than-mid execution, for either side.
func EstimatePriceImpact(book *exchange.OrderBook, side string, volumeQuote float64) (*PriceImpactResult, error) {
	if volumeQuote <= 0 {
		return nil, ErrInvalidVolume
	}
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, ErrEmptyOrderBook
	}

	var levels []exchange.BookLevel
	switch strings.ToLower(side) {
	case "buy":
		levels = book.Asks
	case "sell":
		levels = book.Bids
	default:
		return nil, ErrInvalidSide
	}

	mid := (book.Bids[0].Price + book.Asks[0].Price) / 2

	var baseFilled, quoteFilled float64
	for _, level := range levels {
		levelNotional := level.Price * level.Quantity
		remaining := volumeQuote - quoteFilled

		if levelNotional >= remaining {
			// Take only the fraction of this level needed to complete
			// the target notional.
			baseFilled += remaining / level.Price
			quoteFilled = volumeQuote
			break
		}

		baseFilled += level.Quantity
		quoteFilled += levelNotional
	}

	if quoteFilled < volumeQuote {
		return nil, ErrInsufficientLiquidity
	}

	avg := quoteFilled / baseFilled
	impact := (avg - mid) / mid * 100
	if strings.ToLower(side) == "sell" {
		impact = (mid - avg) / mid * 100
	}

	return &PriceImpactResult{
		Status:             "ok",
		TradeVolumeQuote:   volumeQuote,
		AvgExecutionPrice:  avg,
		MidPrice:           mid,
		PriceImpactPercent: impact,
		BaseQuantityFilled: baseFilled,
	}, nil
}
