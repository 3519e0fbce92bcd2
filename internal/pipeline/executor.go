package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tradepipe/internal/analysis"
	"github.com/tradepipe/internal/config"
	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/pubsub"
	"github.com/tradepipe/internal/symbols"
)

// Executor runs one accepted trade request end to end on a worker:
// validation, symbol resolution, optional pre-trade analysis, placement,
// order monitoring and PnL monitoring. Every intermediate and final result
// is published as an addressed envelope; an accepted request never ends in
// silence.
type Executor struct {
	resolver  *symbols.Resolver
	exchanges *exchange.Registry
	publisher pubsub.Publisher
	trading   config.TradingConfig
	logger    zerolog.Logger
}

// NewExecutor wires the pipeline dependencies.
func NewExecutor(resolver *symbols.Resolver, exchanges *exchange.Registry, publisher pubsub.Publisher, trading config.TradingConfig, logger zerolog.Logger) *Executor {
	return &Executor{
		resolver:  resolver,
		exchanges: exchanges,
		publisher: publisher,
		trading:   trading,
		logger:    logger.With().Str("component", "executor").Logger(),
	}
}

// Execute processes one trade request. All failure paths publish a
// structured error envelope back to the requester.
func (e *Executor) Execute(ctx context.Context, req *models.TradeRequest) {
	logger := e.logger.With().
		Str("user_id", req.UserID).
		Str("exchange", req.Exchange).
		Str("action", string(req.Action)).
		Logger()
	logger.Info().Str("account", req.AccountName).Msg("processing trade request")

	if err := req.Validate(); err != nil {
		logger.Warn().Err(err).Msg("request failed validation")
		e.publishError(ctx, req, err.Error())
		return
	}

	if !models.TradingActions[req.Action] {
		e.publishError(ctx, req, fmt.Sprintf("Unknown action: %s", req.Action))
		return
	}

	adapter, err := e.exchanges.New(req.Exchange, req.Credentials(), req.IsTestnet)
	if err != nil {
		logger.Warn().Err(err).Msg("adapter construction failed")
		e.publishError(ctx, req, err.Error())
		return
	}

	switch req.Action {
	case models.ActionGetAccountInfo:
		e.accountInfo(ctx, req, adapter)
	case models.ActionPlaceMarketOrder, models.ActionPlaceLimitOrder:
		e.placeOrder(ctx, req, adapter, logger)
	case models.ActionAnalyzeAndPlaceOrder:
		e.analyzeAndPlace(ctx, req, adapter, logger)
	}
}

// accountInfo is a one-shot call: any adapter error terminates the action.
func (e *Executor) accountInfo(ctx context.Context, req *models.TradeRequest, adapter exchange.Adapter) {
	balances, err := adapter.GetBalances(ctx)
	if err != nil {
		e.publishError(ctx, req, err.Error())
		return
	}
	e.publish(ctx, req, models.EventPayload{
		Action: req.Action,
		Status: models.StatusCompleted,
		Data:   balances,
	})
}

// placeOrder handles the direct market/limit order actions.
func (e *Executor) placeOrder(ctx context.Context, req *models.TradeRequest, adapter exchange.Adapter, logger zerolog.Logger) {
	native, ok := e.resolveSymbol(ctx, req)
	if !ok {
		return
	}
	if req.Params.Side == "" || req.Params.Amount <= 0 {
		e.publishError(ctx, req, "Missing required data (side, amount)")
		return
	}

	var (
		order *models.Order
		err   error
	)
	if req.Action == models.ActionPlaceLimitOrder {
		if req.Params.Price <= 0 {
			e.publishError(ctx, req, "Missing required data (price)")
			return
		}
		order, err = adapter.PlaceLimitOrder(ctx, native, req.Params.Side, req.Params.Amount, req.Params.Price)
	} else {
		order, err = adapter.PlaceMarketOrder(ctx, native, req.Params.Side, req.Params.Amount)
	}
	if err != nil {
		logger.Error().Err(err).Msg("order placement failed")
		e.publishError(ctx, req, err.Error())
		return
	}

	e.monitorAndTrack(ctx, req, adapter, order, native, logger)
}

// analyzeAndPlace runs the pre-trade analysis flow and, unless dry-run,
// places a market order sized by the analyzer's filled base quantity.
func (e *Executor) analyzeAndPlace(ctx context.Context, req *models.TradeRequest, adapter exchange.Adapter, logger zerolog.Logger) {
	native, ok := e.resolveSymbol(ctx, req)
	if !ok {
		return
	}

	book, err := adapter.GetOrderBook(ctx, native, e.trading.OrderBookDepth)
	if err != nil {
		e.publishError(ctx, req, err.Error())
		return
	}

	impact, err := analysis.EstimatePriceImpact(book, req.Params.Side, req.Params.TradeVolumeQuote)
	if err != nil {
		// Includes insufficient liquidity: the flow terminates before
		// any placement.
		logger.Warn().Err(err).Msg("price impact analysis failed")
		e.publishError(ctx, req, err.Error())
		return
	}
	e.publish(ctx, req, models.EventPayload{
		Action: req.Action,
		Status: models.StatusProcessing,
		Data:   impact,
	})

	meta, err := adapter.GetMarketMetadata(ctx, native)
	if err != nil {
		logger.Warn().Err(err).Msg("market metadata unavailable")
		meta = nil
	}
	funding := analysis.AnalyzeFunding(ctx, adapter, native, meta)
	e.publish(ctx, req, models.EventPayload{
		Action: req.Action,
		Status: models.StatusProcessing,
		Data:   funding,
	})

	if req.Params.DryRun {
		e.publish(ctx, req, models.EventPayload{
			Action:  req.Action,
			Status:  models.StatusCompleted,
			Message: "dry run: analysis only, no order placed",
		})
		return
	}

	order, err := adapter.PlaceMarketOrder(ctx, native, req.Params.Side, impact.BaseQuantityFilled)
	if err != nil {
		logger.Error().Err(err).Msg("order placement failed")
		e.publishError(ctx, req, err.Error())
		return
	}

	e.monitorAndTrack(ctx, req, adapter, order, native, logger)
}

// monitorAndTrack polls the order to a terminal state and, when it filled,
// streams PnL snapshots for the resulting position.
func (e *Executor) monitorAndTrack(ctx context.Context, req *models.TradeRequest, adapter exchange.Adapter, order *models.Order, native string, logger zerolog.Logger) {
	monitor := NewOrderMonitor(adapter, e.publisher, e.trading.PollInterval(), e.trading.MonitorTimeout(), logger)
	final := monitor.Run(ctx, req.UserID, req.Action, order, native)

	if !final.IsFilled() {
		return
	}

	meta, err := adapter.GetMarketMetadata(ctx, native)
	if err != nil {
		logger.Warn().Err(err).Msg("market metadata unavailable, assuming multiplier 1")
		meta = nil
	}

	pnl := NewPnLMonitor(adapter, e.trading.PnLInterval(), e.trading.PnLDuration(), logger)
	for snapshot := range pnl.Stream(ctx, final, req.AccountName, meta) {
		e.publish(ctx, req, models.EventPayload{
			Action: req.Action,
			Status: models.StatusMonitoring,
			Data:   snapshot,
		})
	}

	// Listeners learn monitoring ended rather than the stream going quiet.
	// The stream may have closed because the job was revoked, so the
	// marker goes out on a surviving context.
	e.publish(context.WithoutCancel(ctx), req, models.EventPayload{
		Action:  req.Action,
		Status:  models.StatusStopped,
		Message: "position monitoring ended",
	})
}

// resolveSymbol translates the universal pair, publishing a structured
// error (and returning false) when no mapping exists. Resolution failures
// never reach the adapter.
func (e *Executor) resolveSymbol(ctx context.Context, req *models.TradeRequest) (string, bool) {
	if req.Params.Symbol == "" {
		e.publishError(ctx, req, "Missing required data (symbol)")
		return "", false
	}
	native, err := e.resolver.Resolve(req.Params.Symbol, req.Exchange)
	if err != nil {
		if errors.Is(err, symbols.ErrSymbolNotFound) || errors.Is(err, symbols.ErrExchangeUnknown) {
			e.publishError(ctx, req, err.Error())
		} else {
			e.publishError(ctx, req, fmt.Sprintf("symbol resolution failed: %v", err))
		}
		return "", false
	}
	return native, true
}

func (e *Executor) publish(ctx context.Context, req *models.TradeRequest, payload models.EventPayload) {
	if err := e.publisher.Publish(ctx, req.UserID, payload); err != nil {
		e.logger.Error().Err(err).Str("user_id", req.UserID).Msg("failed to publish event")
	}
}

func (e *Executor) publishError(ctx context.Context, req *models.TradeRequest, message string) {
	e.publish(ctx, req, models.EventPayload{
		Action:  req.Action,
		Status:  models.StatusError,
		Message: message,
	})
}
