package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tradepipe/internal/analysis"
	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/models"
)

// fundingAdapter stubs the adapter contract; only GetFundingRate matters
// for these tests.
type fundingAdapter struct {
	rate *exchange.FundingRate
	err  error
}

func (a *fundingAdapter) Name() string { return "stub" }
func (a *fundingAdapter) GetBalances(ctx context.Context) (map[string]exchange.Balance, error) {
	return nil, nil
}
func (a *fundingAdapter) PlaceMarketOrder(ctx context.Context, symbol, side string, amount float64) (*models.Order, error) {
	return nil, nil
}
func (a *fundingAdapter) PlaceLimitOrder(ctx context.Context, symbol, side string, amount, price float64) (*models.Order, error) {
	return nil, nil
}
func (a *fundingAdapter) GetOrder(ctx context.Context, orderID, symbol string) (*models.Order, error) {
	return nil, nil
}
func (a *fundingAdapter) GetOrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error) {
	return nil, nil
}
func (a *fundingAdapter) GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	return nil, nil
}
func (a *fundingAdapter) GetFundingRate(ctx context.Context, symbol string) (*exchange.FundingRate, error) {
	return a.rate, a.err
}
func (a *fundingAdapter) GetMarketMetadata(ctx context.Context, symbol string) (*exchange.MarketMetadata, error) {
	return nil, nil
}

func TestAnnualizedFundingRate(t *testing.T) {
	// 0.01% per 8h funding interval: 3 intervals a day over 365 days.
	apr := analysis.AnnualizedFundingRate(0.0001, 8*60*60*1000)
	assert.InDelta(t, 10.95, apr, 1e-9)

	// Unknown interval falls back to the 8h convention.
	assert.InDelta(t, apr, analysis.AnnualizedFundingRate(0.0001, 0), 1e-9)

	// 1h interval compounds 24 times a day.
	hourly := analysis.AnnualizedFundingRate(0.0001, 60*60*1000)
	assert.InDelta(t, 87.6, hourly, 1e-9)

	// Negative rates annualize to negative APR.
	assert.Less(t, analysis.AnnualizedFundingRate(-0.0001, 0), 0.0)
}

func TestAnalyzeFundingNotApplicable(t *testing.T) {
	adapter := &fundingAdapter{}

	info := analysis.AnalyzeFunding(context.Background(), adapter, "BTCUSDT", &exchange.MarketMetadata{
		Kind: exchange.MarketKindSpot,
	})
	assert.Equal(t, "not_applicable", info.Status)
	assert.NotEmpty(t, info.Message)

	info = analysis.AnalyzeFunding(context.Background(), adapter, "BTCUSDT", nil)
	assert.Equal(t, "not_applicable", info.Status)
}

func TestAnalyzeFundingPerpetual(t *testing.T) {
	adapter := &fundingAdapter{
		rate: &exchange.FundingRate{
			Symbol:     "BTCUSDT",
			Rate:       0.0001,
			Timestamp:  1700000000000,
			IntervalMs: 8 * 60 * 60 * 1000,
		},
	}

	info := analysis.AnalyzeFunding(context.Background(), adapter, "BTCUSDT", &exchange.MarketMetadata{
		Kind: exchange.MarketKindPerpetual,
	})
	assert.Equal(t, "ok", info.Status)
	assert.Equal(t, 0.0001, info.FundingRate)
	assert.Equal(t, int64(1700000000000), info.FundingTimestamp)
	assert.InDelta(t, 10.95, info.EstimatedAPR, 1e-9)
}

func TestAnalyzeFundingAdapterError(t *testing.T) {
	adapter := &fundingAdapter{err: errors.New("rate limited")}

	info := analysis.AnalyzeFunding(context.Background(), adapter, "BTCUSDT", &exchange.MarketMetadata{
		Kind: exchange.MarketKindPerpetual,
	})
	assert.Equal(t, "error", info.Status)
	assert.Contains(t, info.Message, "rate limited")
}
