package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/open-liontechsolution/tradingtool/internal/infrastructure"
	"github.com/open-liontechsolution/tradingtool/internal/model"
	"github.com/open-liontechsolution/tradingtool/internal/strategy"
)

// Job is one backtest unit of work. Jobs share no mutable state: each run
// builds its own prepared state and ledger, so workers never coordinate.
type Job struct {
	ID       string
	Candles  []model.Candle
	Strategy strategy.Strategy
	Params   strategy.Params
	Config   RunConfig
	Result   chan JobResult // buffered, receives exactly one value
}

type JobResult struct {
	ID     string
	Result *model.BacktestResult
	Err    error
}

// RunPool bounds how many backtests execute at once. Submitters wait for
// queue space rather than being dropped; a backtest request is not a
// best-effort tick.
type RunPool struct {
	jobs    chan *Job
	workers int
	runner  *Runner
	logger  *zap.Logger
}

func NewRunPool(workers, bufferSize int, runner *Runner, logger *zap.Logger) *RunPool {
	if workers <= 0 {
		workers = 1
	}
	return &RunPool{
		jobs:    make(chan *Job, bufferSize),
		workers: workers,
		runner:  runner,
		logger:  logger,
	}
}

func (p *RunPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx, i)
	}
	p.logger.Info("started backtest run pool", zap.Int("workers", p.workers))
}

// Submit enqueues a job. It blocks until the queue accepts it or ctx ends.
func (p *RunPool) Submit(ctx context.Context, job *Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *RunPool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.execute(id, job)
		}
	}
}

func (p *RunPool) execute(workerID int, job *Job) {
	started := time.Now()
	infrastructure.BacktestsStarted.WithLabelValues(job.Strategy.Name()).Inc()

	result, err := p.runner.Run(job.Candles, job.Strategy, job.Params, job.Config)

	infrastructure.BacktestDuration.WithLabelValues(job.Strategy.Name()).Observe(time.Since(started).Seconds())
	if err != nil {
		p.logger.Warn("backtest failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	} else {
		infrastructure.BacktestsCompleted.WithLabelValues(job.Strategy.Name()).Inc()
	}

	job.Result <- JobResult{ID: job.ID, Result: result, Err: err}
}
