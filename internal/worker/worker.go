package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tradepipe/internal/pipeline"
	"github.com/tradepipe/internal/queue"
	"github.com/tradepipe/internal/recorder"
)

// Pool pulls jobs off the queue and runs them on a fixed set of goroutines.
// Every running job is registered so a revoke on the control channel can
// cancel it, whichever goroutine picked it up.
type Pool struct {
	queue       *queue.Queue
	executor    *pipeline.Executor
	recorder    *recorder.Recorder
	registry    *JobRegistry
	concurrency int
	logger      zerolog.Logger
}

// NewPool creates a worker pool.
func NewPool(q *queue.Queue, executor *pipeline.Executor, rec *recorder.Recorder, concurrency int, logger zerolog.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		queue:       q,
		executor:    executor,
		recorder:    rec,
		registry:    NewJobRegistry(),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run consumes jobs until ctx is canceled, then waits for in-flight jobs
// to finish.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info().Int("concurrency", p.concurrency).Msg("worker pool started")

	go p.queue.SubscribeControl(ctx, func(msg queue.ControlMessage) {
		if msg.Op != queue.OpRevoke {
			return
		}
		if p.registry.Cancel(msg.JobID) {
			p.logger.Info().Str("job_id", msg.JobID).Msg("job revoked")
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.consume(ctx)
		}()
	}
	wg.Wait()

	p.logger.Info().Msg("worker pool stopped")
}

func (p *Pool) consume(ctx context.Context) {
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		p.run(ctx, job)
	}
}

func (p *Pool) run(ctx context.Context, job *queue.Job) {
	logger := p.logger.With().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Logger()

	jobCtx, cancel := context.WithCancel(ctx)
	p.registry.Add(job.ID, cancel)
	defer func() {
		p.registry.Remove(job.ID)
		cancel()
	}()

	logger.Info().Msg("job started")

	switch job.Kind {
	case queue.JobKindTrade:
		if job.Request == nil {
			logger.Error().Msg("trade job carries no request")
			return
		}
		p.executor.Execute(jobCtx, job.Request)
	case queue.JobKindRecordOrderBook:
		if job.Record == nil {
			logger.Error().Msg("record job carries no parameters")
			return
		}
		if err := p.recorder.Run(jobCtx, job.Record); err != nil {
			logger.Error().Err(err).Msg("record job failed")
			return
		}
	default:
		logger.Error().Msg("unknown job kind")
		return
	}

	logger.Info().Msg("job finished")
}
