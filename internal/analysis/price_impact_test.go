package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepipe/internal/analysis"
	"github.com/tradepipe/internal/exchange"
)

func testBook() *exchange.OrderBook {
	return &exchange.OrderBook{
		Symbol: "BTCUSDT",
		Bids: []exchange.BookLevel{
			{Price: 99.0, Quantity: 10},
			{Price: 98.0, Quantity: 10},
			{Price: 97.0, Quantity: 10},
		},
		Asks: []exchange.BookLevel{
			{Price: 101.0, Quantity: 10},
			{Price: 102.0, Quantity: 10},
			{Price: 103.0, Quantity: 10},
		},
	}
}

func TestEstimatePriceImpactBuy(t *testing.T) {
	book := testBook()

	// 1515 quote fills the whole first ask level (1010) plus part of the
	// second (505 at 102).
	result, err := analysis.EstimatePriceImpact(book, "buy", 1515)
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, 100.0, result.MidPrice)
	assert.InDelta(t, 14.95098, result.BaseQuantityFilled, 1e-4)
	assert.InDelta(t, 1515/14.95098, result.AvgExecutionPrice, 1e-4)

	// Buying walks up the asks, so execution is worse than mid and the
	// impact is positive.
	assert.Greater(t, result.AvgExecutionPrice, result.MidPrice)
	assert.Greater(t, result.PriceImpactPercent, 0.0)

	// Average price sits between the best and worst consumed level.
	assert.GreaterOrEqual(t, result.AvgExecutionPrice, 101.0)
	assert.LessOrEqual(t, result.AvgExecutionPrice, 102.0)

	// Filled base times average price reproduces the target notional.
	assert.InDelta(t, 1515, result.BaseQuantityFilled*result.AvgExecutionPrice, 1e-6)
}

func TestEstimatePriceImpactSell(t *testing.T) {
	book := testBook()

	result, err := analysis.EstimatePriceImpact(book, "sell", 1480)
	require.NoError(t, err)

	// Selling walks down the bids. The sign convention keeps positive
	// impact meaning worse-than-mid execution for both sides.
	assert.Less(t, result.AvgExecutionPrice, result.MidPrice)
	assert.Greater(t, result.PriceImpactPercent, 0.0)
	assert.InDelta(t, 1480, result.BaseQuantityFilled*result.AvgExecutionPrice, 1e-6)
}

func TestEstimatePriceImpactSingleLevel(t *testing.T) {
	book := testBook()

	// Fits entirely in the best ask level: average equals the best ask.
	result, err := analysis.EstimatePriceImpact(book, "buy", 505)
	require.NoError(t, err)
	assert.InDelta(t, 101.0, result.AvgExecutionPrice, 1e-9)
	assert.InDelta(t, 5.0, result.BaseQuantityFilled, 1e-9)
}

func TestEstimatePriceImpactInsufficientLiquidity(t *testing.T) {
	book := testBook()

	// Total ask-side notional is 1010+1020+1030 = 3060.
	_, err := analysis.EstimatePriceImpact(book, "buy", 5000)
	assert.ErrorIs(t, err, analysis.ErrInsufficientLiquidity)
}

func TestEstimatePriceImpactValidation(t *testing.T) {
	book := testBook()

	_, err := analysis.EstimatePriceImpact(book, "buy", 0)
	assert.ErrorIs(t, err, analysis.ErrInvalidVolume)

	_, err = analysis.EstimatePriceImpact(book, "buy", -100)
	assert.ErrorIs(t, err, analysis.ErrInvalidVolume)

	_, err = analysis.EstimatePriceImpact(book, "hold", 100)
	assert.ErrorIs(t, err, analysis.ErrInvalidSide)

	_, err = analysis.EstimatePriceImpact(nil, "buy", 100)
	assert.ErrorIs(t, err, analysis.ErrEmptyOrderBook)

	empty := &exchange.OrderBook{Bids: []exchange.BookLevel{{Price: 99, Quantity: 1}}}
	_, err = analysis.EstimatePriceImpact(empty, "buy", 100)
	assert.ErrorIs(t, err, analysis.ErrEmptyOrderBook)
}
