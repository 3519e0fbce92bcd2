package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/pubsub"
)

// OrderMonitor drives a placed order to a terminal state by polling the
// exchange on a fixed interval, bounded by an overall deadline. It never
// retries placement; only status retrieval is repeated. Transient adapter
// errors during polling are swallowed and retried until the deadline.
type OrderMonitor struct {
	adapter   exchange.Adapter
	publisher pubsub.Publisher
	interval  time.Duration
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewOrderMonitor creates a monitor with the given polling bounds.
func NewOrderMonitor(adapter exchange.Adapter, publisher pubsub.Publisher, interval, timeout time.Duration, logger zerolog.Logger) *OrderMonitor {
	return &OrderMonitor{
		adapter:   adapter,
		publisher: publisher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger.With().Str("component", "order_monitor").Logger(),
	}
}

// Run publishes the "placed" acknowledgment, polls the order to a terminal
// state, publishes the terminal event and returns the final order. All
// events carry the originating user and action so the fan-out layer can
// route them. Cancellation is cooperative, checked at tick boundaries.
func (m *OrderMonitor) Run(ctx context.Context, userID string, action models.Action, order *models.Order, nativeSymbol string) *models.Order {
	m.publish(ctx, userID, action, models.StatusPlaced, order, "")

	logger := m.logger.With().Str("user_id", userID).Str("order_id", order.ID).Logger()
	deadline := time.Now().Add(m.timeout)
	current := *order

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("order monitoring cancelled")
			// ctx is already done here; the stop marker must still reach
			// the listener, so publish it on a surviving context.
			m.publish(context.WithoutCancel(ctx), userID, action, models.StatusStopped, &current, "order monitoring cancelled")
			return &current

		case <-ticker.C:
			latest, err := m.adapter.GetOrder(ctx, current.ID, nativeSymbol)
			if err != nil {
				// Transient failure: keep polling until the deadline.
				logger.Warn().Err(err).Msg("order status poll failed")
			} else {
				current = *latest
				if current.IsTerminal() {
					logger.Info().Str("status", string(current.Status)).Msg("order reached terminal state")
					m.publish(ctx, userID, action, terminalEventStatus(&current), &current, "")
					return &current
				}
			}

			if time.Now().After(deadline) {
				current.Status = models.OrderStatusTimedOut
				logger.Warn().Dur("timeout", m.timeout).Msg("order monitoring deadline exceeded")
				m.publish(ctx, userID, action, models.StatusError, &current,
					"order monitoring deadline exceeded without a terminal exchange status")
				return &current
			}
		}
	}
}

func (m *OrderMonitor) publish(ctx context.Context, userID string, action models.Action, status models.EventStatus, order *models.Order, message string) {
	err := m.publisher.Publish(ctx, userID, models.EventPayload{
		Action:  action,
		Status:  status,
		Data:    order,
		Message: message,
	})
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", userID).Msg("failed to publish order event")
	}
}

// terminalEventStatus maps a terminal order status onto the envelope
// status vocabulary.
func terminalEventStatus(o *models.Order) models.EventStatus {
	switch o.Status {
	case models.OrderStatusClosed:
		return models.StatusClosed
	case models.OrderStatusFilled:
		return models.StatusFilled
	case models.OrderStatusCanceled:
		return models.StatusCanceled
	case models.OrderStatusRejected:
		return models.StatusRejected
	default:
		return models.StatusError
	}
}
