package pipeline_test

import (
	"context"
	"sync"

	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/models"
)

// capturePublisher records published envelopes for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []models.Envelope
}

func (p *capturePublisher) Publish(ctx context.Context, userID string, payload models.EventPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, models.Envelope{UserID: userID, Payload: payload})
	return nil
}

func (p *capturePublisher) Events() []models.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Envelope, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePublisher) Statuses() []models.EventStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	statuses := make([]models.EventStatus, len(p.events))
	for i, e := range p.events {
		statuses[i] = e.Payload.Status
	}
	return statuses
}

// strictPublisher behaves like the redis publisher: publishing on a
// canceled context fails instead of recording the event.
type strictPublisher struct {
	capturePublisher
}

func (p *strictPublisher) Publish(ctx context.Context, userID string, payload models.EventPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.capturePublisher.Publish(ctx, userID, payload)
}

// stubAdapter is a scriptable in-memory adapter. GetOrder returns the
// scripted orders in sequence, repeating the last one; nil entries produce
// a scripted error.
type stubAdapter struct {
	mu         sync.Mutex
	orderCalls int

	orders    []*models.Order
	orderErr  error
	placed    *models.Order
	placeErr  error
	book      *exchange.OrderBook
	bookErr   error
	ticker    *exchange.Ticker
	tickerErr error
	funding   *exchange.FundingRate
	meta      *exchange.MarketMetadata
	balances  map[string]exchange.Balance
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) GetBalances(ctx context.Context) (map[string]exchange.Balance, error) {
	return a.balances, nil
}

func (a *stubAdapter) PlaceMarketOrder(ctx context.Context, symbol, side string, amount float64) (*models.Order, error) {
	if a.placeErr != nil {
		return nil, a.placeErr
	}
	return a.placed, nil
}

func (a *stubAdapter) PlaceLimitOrder(ctx context.Context, symbol, side string, amount, price float64) (*models.Order, error) {
	if a.placeErr != nil {
		return nil, a.placeErr
	}
	return a.placed, nil
}

func (a *stubAdapter) GetOrder(ctx context.Context, orderID, symbol string) (*models.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.orderCalls
	a.orderCalls++
	if i >= len(a.orders) {
		i = len(a.orders) - 1
	}
	if i < 0 || a.orders[i] == nil {
		return nil, a.orderErr
	}
	return a.orders[i], nil
}

func (a *stubAdapter) orderCallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orderCalls
}

func (a *stubAdapter) GetOrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error) {
	if a.bookErr != nil {
		return nil, a.bookErr
	}
	return a.book, nil
}

func (a *stubAdapter) GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	if a.tickerErr != nil {
		return nil, a.tickerErr
	}
	return a.ticker, nil
}

func (a *stubAdapter) GetFundingRate(ctx context.Context, symbol string) (*exchange.FundingRate, error) {
	return a.funding, nil
}

func (a *stubAdapter) GetMarketMetadata(ctx context.Context, symbol string) (*exchange.MarketMetadata, error) {
	return a.meta, nil
}
