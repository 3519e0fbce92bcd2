package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tradepipe/internal/models"
)

// Publisher addresses a result payload to the user who originated the
// request. Implementations fan the envelope out to whatever process holds
// that user's live connection.
type Publisher interface {
	Publish(ctx context.Context, userID string, payload models.EventPayload) error
}

// RedisPublisher publishes envelopes on a redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  zerolog.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher over the given channel.
func NewRedisPublisher(rdb *redis.Client, channel string, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		logger:  logger.With().Str("component", "publisher").Logger(),
	}
}

// Publish marshals the envelope and broadcasts it to all subscribers.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, payload models.EventPayload) error {
	data, err := json.Marshal(models.Envelope{UserID: userID, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	p.logger.Debug().Str("user_id", userID).
		Str("action", string(payload.Action)).
		Str("status", string(payload.Status)).
		Msg("event published")
	return nil
}
