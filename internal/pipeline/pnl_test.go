package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/pipeline"
)

func TestUnrealizedPnL(t *testing.T) {
	// Long position gains when price rises.
	assert.InDelta(t, 20.0, pipeline.UnrealizedPnL("long", 100, 110, 2, 1), 1e-9)
	assert.InDelta(t, -20.0, pipeline.UnrealizedPnL("long", 100, 90, 2, 1), 1e-9)

	// Short position gains when price falls.
	assert.InDelta(t, 20.0, pipeline.UnrealizedPnL("short", 100, 90, 2, 1), 1e-9)
	assert.InDelta(t, -20.0, pipeline.UnrealizedPnL("short", 100, 110, 2, 1), 1e-9)

	// Contract multiplier scales the underlying quantity.
	assert.InDelta(t, 0.02, pipeline.UnrealizedPnL("long", 100, 110, 2, 0.001), 1e-9)
}

func TestPnLStreamProducesSnapshots(t *testing.T) {
	adapter := &stubAdapter{
		ticker: &exchange.Ticker{Symbol: "BTCUSDT", Last: 110},
	}
	order := &models.Order{
		ID:               "101",
		Symbol:           "BTCUSDT",
		Side:             models.OrderSideBuy,
		Status:           models.OrderStatusClosed,
		AverageFillPrice: 100,
		FilledQuantity:   2,
		Timestamp:        1700000000000,
	}

	m := pipeline.NewPnLMonitor(adapter, 5*time.Millisecond, 100*time.Millisecond, zerolog.Nop())

	var snapshots []models.PnLSnapshot
	for s := range m.Stream(context.Background(), order, "main", nil) {
		snapshots = append(snapshots, s)
	}

	// Bounded window: the stream ended on its own and produced several
	// observations along the way.
	require.NotEmpty(t, snapshots)
	first := snapshots[0]
	assert.Equal(t, "main", first.AccountLabel)
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, "long", first.PositionSide)
	assert.Equal(t, 100.0, first.EntryPrice)
	assert.Equal(t, 110.0, first.CurrentPrice)
	assert.InDelta(t, 20.0, first.NetPnL, 1e-9)
	assert.Equal(t, int64(1700000000000), first.EntryTimestamp)
}

func TestPnLStreamAppliesMultiplier(t *testing.T) {
	adapter := &stubAdapter{
		ticker: &exchange.Ticker{Symbol: "BTCUSD", Last: 110},
	}
	order := &models.Order{
		ID:               "102",
		Symbol:           "BTCUSD",
		Side:             models.OrderSideSell,
		Status:           models.OrderStatusFilled,
		AverageFillPrice: 100,
		FilledQuantity:   10,
	}
	meta := &exchange.MarketMetadata{Kind: exchange.MarketKindPerpetual, ContractSize: 0.01}

	m := pipeline.NewPnLMonitor(adapter, 5*time.Millisecond, 50*time.Millisecond, zerolog.Nop())

	ch := m.Stream(context.Background(), order, "main", meta)
	s, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "short", s.PositionSide)
	// (100-110) * 10 * 0.01
	assert.InDelta(t, -1.0, s.NetPnL, 1e-9)
	for range ch {
	}
}

func TestPnLStreamUnfilledOrder(t *testing.T) {
	m := pipeline.NewPnLMonitor(&stubAdapter{}, time.Millisecond, time.Second, zerolog.Nop())

	order := &models.Order{ID: "103", Status: models.OrderStatusCanceled}
	ch := m.Stream(context.Background(), order, "main", nil)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestPnLStreamSkipsTickerFailures(t *testing.T) {
	adapter := &stubAdapter{tickerErr: assert.AnError}
	order := &models.Order{
		ID:               "104",
		Symbol:           "BTCUSDT",
		Side:             models.OrderSideBuy,
		Status:           models.OrderStatusClosed,
		AverageFillPrice: 100,
		FilledQuantity:   1,
	}

	m := pipeline.NewPnLMonitor(adapter, time.Millisecond, 20*time.Millisecond, zerolog.Nop())

	var count int
	for range m.Stream(context.Background(), order, "main", nil) {
		count++
	}
	assert.Zero(t, count)
}

func TestPnLStreamCancellation(t *testing.T) {
	adapter := &stubAdapter{ticker: &exchange.Ticker{Last: 110}}
	order := &models.Order{
		ID:               "105",
		Symbol:           "BTCUSDT",
		Side:             models.OrderSideBuy,
		Status:           models.OrderStatusClosed,
		AverageFillPrice: 100,
		FilledQuantity:   1,
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := pipeline.NewPnLMonitor(adapter, time.Millisecond, time.Hour, zerolog.Nop())

	ch := m.Stream(ctx, order, "main", nil)
	<-ch
	cancel()

	// The channel closes promptly instead of running out the window.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}
