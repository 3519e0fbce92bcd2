package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/pipeline"
)

func openOrder() *models.Order {
	return &models.Order{
		ID:     "101",
		Symbol: "BTCUSDT",
		Side:   models.OrderSideBuy,
		Amount: 1,
		Status: models.OrderStatusOpen,
	}
}

func closedOrder() *models.Order {
	return &models.Order{
		ID:               "101",
		Symbol:           "BTCUSDT",
		Side:             models.OrderSideBuy,
		Amount:           1,
		Status:           models.OrderStatusClosed,
		AverageFillPrice: 100,
		FilledQuantity:   1,
	}
}

func TestOrderMonitorReachesTerminalState(t *testing.T) {
	adapter := &stubAdapter{
		orders: []*models.Order{openOrder(), openOrder(), closedOrder()},
	}
	publisher := &capturePublisher{}

	m := pipeline.NewOrderMonitor(adapter, publisher, time.Millisecond, time.Second, zerolog.Nop())
	final := m.Run(context.Background(), "alice", models.ActionPlaceMarketOrder, openOrder(), "BTCUSDT")

	assert.Equal(t, models.OrderStatusClosed, final.Status)
	assert.GreaterOrEqual(t, adapter.orderCallCount(), 3)

	statuses := publisher.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, models.StatusPlaced, statuses[0])
	assert.Equal(t, models.StatusClosed, statuses[1])

	for _, env := range publisher.Events() {
		assert.Equal(t, "alice", env.UserID)
		assert.Equal(t, models.ActionPlaceMarketOrder, env.Payload.Action)
	}
}

func TestOrderMonitorCanceledOrder(t *testing.T) {
	canceled := openOrder()
	canceled.Status = models.OrderStatusCanceled
	adapter := &stubAdapter{orders: []*models.Order{canceled}}
	publisher := &capturePublisher{}

	m := pipeline.NewOrderMonitor(adapter, publisher, time.Millisecond, time.Second, zerolog.Nop())
	final := m.Run(context.Background(), "alice", models.ActionPlaceLimitOrder, openOrder(), "BTCUSDT")

	assert.Equal(t, models.OrderStatusCanceled, final.Status)
	statuses := publisher.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, models.StatusCanceled, statuses[1])
}

func TestOrderMonitorTimeout(t *testing.T) {
	adapter := &stubAdapter{orders: []*models.Order{openOrder()}}
	publisher := &capturePublisher{}

	m := pipeline.NewOrderMonitor(adapter, publisher, time.Millisecond, 20*time.Millisecond, zerolog.Nop())
	final := m.Run(context.Background(), "alice", models.ActionPlaceLimitOrder, openOrder(), "BTCUSDT")

	assert.Equal(t, models.OrderStatusTimedOut, final.Status)
	assert.False(t, final.IsFilled())

	events := publisher.Events()
	last := events[len(events)-1]
	assert.Equal(t, models.StatusError, last.Payload.Status)
	assert.Contains(t, last.Payload.Message, "deadline exceeded")
}

func TestOrderMonitorRetriesTransientErrors(t *testing.T) {
	// Two failed polls, then a terminal read.
	adapter := &stubAdapter{
		orders:   []*models.Order{nil, nil, closedOrder()},
		orderErr: errors.New("502 bad gateway"),
	}
	publisher := &capturePublisher{}

	m := pipeline.NewOrderMonitor(adapter, publisher, time.Millisecond, time.Second, zerolog.Nop())
	final := m.Run(context.Background(), "alice", models.ActionPlaceMarketOrder, openOrder(), "BTCUSDT")

	assert.Equal(t, models.OrderStatusClosed, final.Status)
	statuses := publisher.Statuses()
	assert.Equal(t, []models.EventStatus{models.StatusPlaced, models.StatusClosed}, statuses)
}

func TestOrderMonitorCancellation(t *testing.T) {
	adapter := &stubAdapter{orders: []*models.Order{openOrder()}}
	// A publisher that fails on canceled contexts: the stop marker must
	// still be delivered after the job is revoked.
	publisher := &strictPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	m := pipeline.NewOrderMonitor(adapter, publisher, time.Millisecond, time.Minute, zerolog.Nop())
	final := m.Run(ctx, "alice", models.ActionPlaceMarketOrder, openOrder(), "BTCUSDT")

	assert.Equal(t, models.OrderStatusOpen, final.Status)

	statuses := publisher.Statuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, models.StatusPlaced, statuses[0])
	assert.Equal(t, models.StatusStopped, statuses[len(statuses)-1])
}
