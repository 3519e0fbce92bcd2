package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tradepipe/internal/models"
)

// Subscriber consumes the fan-out channel and hands each decoded envelope
// to a handler. Used by the gateway to route events to live connections.
type Subscriber struct {
	rdb     *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewSubscriber creates a subscriber over the given channel.
func NewSubscriber(rdb *redis.Client, channel string, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		rdb:     rdb,
		channel: channel,
		logger:  logger.With().Str("component", "subscriber").Logger(),
	}
}

// Run blocks consuming the channel until ctx is cancelled. Malformed
// messages are logged and skipped.
func (s *Subscriber) Run(ctx context.Context, handler func(models.Envelope)) {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env models.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.logger.Error().Err(err).Msg("dropping malformed envelope")
				continue
			}
			handler(env)
		}
	}
}
