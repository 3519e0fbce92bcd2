package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/models"
)

// UnrealizedPnL computes point-in-time unrealized PnL for a position. The
// multiplier converts one contract unit into underlying quantity; it is
// 1.0 for non-derivative instruments.
func UnrealizedPnL(positionSide string, entry, current, quantity, multiplier float64) float64 {
	if positionSide == "long" {
		return (current - entry) * quantity * multiplier
	}
	return (entry - current) * quantity * multiplier
}

// PnLMonitor produces periodic unrealized-PnL snapshots for a filled
// position over a bounded window.
type PnLMonitor struct {
	adapter  exchange.Adapter
	interval time.Duration
	duration time.Duration
	logger   zerolog.Logger
}

// NewPnLMonitor creates a monitor with the given cadence and total window.
func NewPnLMonitor(adapter exchange.Adapter, interval, duration time.Duration, logger zerolog.Logger) *PnLMonitor {
	return &PnLMonitor{
		adapter:  adapter,
		interval: interval,
		duration: duration,
		logger:   logger.With().Str("component", "pnl_monitor").Logger(),
	}
}

// Stream returns a lazy, finite, non-restartable sequence of snapshots for
// the position opened by a filled order. Each snapshot is handed over as
// it is produced; nothing is buffered. The channel closes when the window
// elapses or ctx is cancelled, with cancellation checked between yields.
// Orders that are not filled yield an immediately closed channel.
func (m *PnLMonitor) Stream(ctx context.Context, order *models.Order, accountLabel string, meta *exchange.MarketMetadata) <-chan models.PnLSnapshot {
	out := make(chan models.PnLSnapshot)

	if order == nil || !order.IsFilled() {
		close(out)
		return out
	}

	entryPrice := order.AverageFillPrice
	quantity := order.FilledQuantity
	positionSide := order.PositionSide()
	entryTimestamp := order.Timestamp
	multiplier := meta.Multiplier()
	symbol := order.Symbol

	go func() {
		defer close(out)

		deadline := time.Now().Add(m.duration)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if time.Now().After(deadline) {
				return
			}

			quote, err := m.adapter.GetTicker(ctx, symbol)
			if err != nil {
				m.logger.Warn().Err(err).Str("symbol", symbol).Msg("reference price fetch failed")
				continue
			}

			snapshot := models.PnLSnapshot{
				AccountLabel:   accountLabel,
				Symbol:         symbol,
				EntryTimestamp: entryTimestamp,
				EntryPrice:     entryPrice,
				Quantity:       quantity,
				PositionSide:   positionSide,
				CurrentPrice:   quote.Last,
				NetPnL:         UnrealizedPnL(positionSide, entryPrice, quote.Last, quantity, multiplier),
			}

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
