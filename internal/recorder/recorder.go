package recorder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/queue"
	"github.com/tradepipe/internal/symbols"
)

// SnapshotStore persists captured order-book snapshots.
type SnapshotStore interface {
	Create(snapshot *models.OrderBookSnapshot) error
}

// Recorder captures order-book snapshots for one market at a fixed interval
// until its context is canceled. It uses a public (unauthenticated) adapter;
// depth queries need no API keys on either venue.
type Recorder struct {
	resolver  *symbols.Resolver
	exchanges *exchange.Registry
	store     SnapshotStore
	depth     int
	logger    zerolog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(resolver *symbols.Resolver, exchanges *exchange.Registry, store SnapshotStore, depth int, logger zerolog.Logger) *Recorder {
	return &Recorder{
		resolver:  resolver,
		exchanges: exchanges,
		store:     store,
		depth:     depth,
		logger:    logger,
	}
}

// Run records snapshots for params until ctx is canceled. One snapshot is
// captured immediately, then one per interval. Transient capture or persist
// failures are logged and the loop keeps going; only a setup failure
// (unknown exchange, unknown symbol) returns an error.
func (r *Recorder) Run(ctx context.Context, params *queue.RecordParams) error {
	adapter, err := r.exchanges.New(params.Exchange, models.Credentials{}, false)
	if err != nil {
		return err
	}

	native, err := r.resolver.Resolve(params.Symbol, params.Exchange)
	if err != nil {
		return err
	}

	interval := time.Duration(params.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	logger := r.logger.With().
		Str("exchange", params.Exchange).
		Str("symbol", params.Symbol).
		Dur("interval", interval).
		Logger()
	logger.Info().Msg("orderbook persistence started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.capture(ctx, adapter, params, native, logger)

		select {
		case <-ctx.Done():
			logger.Info().Msg("orderbook persistence stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Recorder) capture(ctx context.Context, adapter exchange.Adapter, params *queue.RecordParams, native string, logger zerolog.Logger) {
	book, err := adapter.GetOrderBook(ctx, native, r.depth)
	if err != nil {
		logger.Warn().Err(err).Msg("orderbook fetch failed, skipping snapshot")
		return
	}

	bids, err := json.Marshal(book.Bids)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode bids")
		return
	}
	asks, err := json.Marshal(book.Asks)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode asks")
		return
	}

	snapshot := &models.OrderBookSnapshot{
		Exchange:   params.Exchange,
		Symbol:     params.Symbol,
		Bids:       string(bids),
		Asks:       string(asks),
		CapturedAt: time.UnixMilli(book.Timestamp),
	}
	if err := r.store.Create(snapshot); err != nil {
		logger.Error().Err(err).Msg("failed to persist snapshot")
	}
}
