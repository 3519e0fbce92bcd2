package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tradepipe/internal/models"
)

// JobKind distinguishes the two job families workers execute.
type JobKind string

const (
	JobKindTrade           JobKind = "trade"
	JobKindRecordOrderBook JobKind = "record_orderbook"
)

// RecordParams parameterizes an order-book persistence job.
type RecordParams struct {
	Exchange        string `json:"exchange"`
	Symbol          string `json:"symbol"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// Job is one unit of work handed from the gateway to a worker. Exactly one
// of Request or Record is set, matching Kind.
type Job struct {
	ID         string               `json:"id"`
	Kind       JobKind              `json:"kind"`
	Request    *models.TradeRequest `json:"request,omitempty"`
	Record     *RecordParams        `json:"record,omitempty"`
	EnqueuedAt int64                `json:"enqueued_at"`
}

// ControlMessage travels the control channel to revoke running jobs.
type ControlMessage struct {
	JobID string `json:"job_id"`
	Op    string `json:"op"`
}

const OpRevoke = "revoke"

// Queue is a redis-list job queue with a pub/sub control side channel.
// The list gives at-least-once hand-off to exactly one worker; revocations
// are broadcast because any worker may hold the job.
type Queue struct {
	rdb        *redis.Client
	jobKey     string
	controlKey string
	logger     zerolog.Logger
}

// New creates a Queue over the given redis keys.
func New(rdb *redis.Client, jobKey, controlKey string, logger zerolog.Logger) *Queue {
	return &Queue{
		rdb:        rdb,
		jobKey:     jobKey,
		controlKey: controlKey,
		logger:     logger.With().Str("component", "queue").Logger(),
	}
}

// Enqueue pushes a job for some worker to pick up.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if job.EnqueuedAt == 0 {
		job.EnqueuedAt = time.Now().UnixMilli()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.jobKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	q.logger.Debug().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("job enqueued")
	return nil
}

// Dequeue blocks until a job is available or ctx is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		res, err := q.rdb.BRPop(ctx, time.Second, q.jobKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			return nil, err
		}
		// BRPOP returns [key, value].
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Error().Err(err).Msg("dropping malformed job")
			continue
		}
		return &job, nil
	}
}

// Revoke broadcasts a cancellation for the given job id.
func (q *Queue) Revoke(ctx context.Context, jobID string) error {
	data, err := json.Marshal(ControlMessage{JobID: jobID, Op: OpRevoke})
	if err != nil {
		return err
	}
	if err := q.rdb.Publish(ctx, q.controlKey, data).Err(); err != nil {
		return fmt.Errorf("revoke job %s: %w", jobID, err)
	}
	q.logger.Info().Str("job_id", jobID).Msg("job revoked")
	return nil
}

// SubscribeControl consumes control messages until ctx is cancelled.
func (q *Queue) SubscribeControl(ctx context.Context, handler func(ControlMessage)) {
	sub := q.rdb.Subscribe(ctx, q.controlKey)
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
			var cm ControlMessage
			if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
				q.logger.Error().Err(err).Msg("dropping malformed control message")
				continue
			}
			handler(cm)
		}
	}
}
