package analysis

import (
	"context"

	"github.com/tradepipe/internal/exchange"
)

const msPerDay = 86_400_000

// FundingInfo is the advisory funding estimate for an instrument.
type FundingInfo struct {
	Status           string  `json:"status"`
	FundingRate      float64 `json:"funding_rate,omitempty"`
	FundingTimestamp int64   `json:"funding_timestamp,omitempty"`
	EstimatedAPR     float64 `json:"estimated_apr,omitempty"`
	Message          string  `json:"message,omitempty"`
}

// AnnualizedFundingRate converts a per-interval funding rate into an
// estimated annual percentage: rate scaled to a day, over 365 days, as a
// percentage.
func AnnualizedFundingRate(rate float64, intervalMs int64) float64 {
	if intervalMs <= 0 {
		intervalMs = 8 * 60 * 60 * 1000
	}
	return rate * (float64(msPerDay) / float64(intervalMs)) * 365 * 100
}

// AnalyzeFunding produces a funding estimate for the instrument. Funding
// information is advisory: non-perpetual instruments yield a
// not-applicable result, and adapter failures are reported as an error
// result rather than propagated.
func AnalyzeFunding(ctx context.Context, adapter exchange.Adapter, nativeSymbol string, meta *exchange.MarketMetadata) *FundingInfo {
	if meta == nil || meta.Kind != exchange.MarketKindPerpetual {
		return &FundingInfo{
			Status:  "not_applicable",
			Message: "funding rates apply to perpetual instruments only",
		}
	}

	fr, err := adapter.GetFundingRate(ctx, nativeSymbol)
	if err != nil {
		return &FundingInfo{Status: "error", Message: err.Error()}
	}

	return &FundingInfo{
		Status:           "ok",
		FundingRate:      fr.Rate,
		FundingTimestamp: fr.Timestamp,
		EstimatedAPR:     AnnualizedFundingRate(fr.Rate, fr.IntervalMs),
	}
}
