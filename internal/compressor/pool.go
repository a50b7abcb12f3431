package compressor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harliandi/go-pngquant/pkg/metrics"
)

var (
	// ErrPoolBusy is returned when the worker pool is at capacity
	ErrPoolBusy = errors.New("worker pool is busy, please retry later")
	// ErrPoolStopped is returned for jobs submitted after Stop
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Job represents a compression job
type Job struct {
	ctx     context.Context
	Data    []byte
	Options Options
	Result  chan<- Result
}

// Result represents the outcome of a compression job
type Result struct {
	Output *Output
	Err    error
}

// WorkerPool runs compression jobs on a fixed number of goroutines
type WorkerPool struct {
	compressor *Compressor
	jobs       chan Job
	workers    int
	active     atomic.Int64
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	mu         sync.RWMutex
	stopped    bool
}

// NewWorkerPool creates a new worker pool with the specified number of
// workers and a queue twice that long
func NewWorkerPool(c *Compressor, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		compressor: c,
		jobs:       make(chan Job, workers*2),
		workers:    workers,
	}
}

// Start starts the worker pool goroutines
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		slog.Info("starting worker pool", "workers", p.workers, "queue", cap(p.jobs))
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// worker processes jobs from the job channel
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		var result Result
		if err := job.ctx.Err(); err != nil {
			// The caller gave up while the job was queued.
			result.Err = err
		} else {
			p.active.Add(1)
			p.updateMetrics()
			result.Output, result.Err = p.compressor.CompressBytes(job.ctx, job.Data, job.Options)
			p.active.Add(-1)
		}
		p.updateMetrics()

		// Result channels are buffered; a full one means nobody is waiting.
		select {
		case job.Result <- result:
		default:
			slog.Warn("result channel full or closed", "worker", id)
		}
	}
}

// Submit submits a job to the worker pool with context cancellation support.
// Returns ErrPoolBusy if the worker pool queue is full.
func (p *WorkerPool) Submit(ctx context.Context, data []byte, opts Options) (*Output, error) {
	p.Start()

	resultChan := make(chan Result, 1)
	job := Job{ctx: ctx, Data: data, Options: opts, Result: resultChan}

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return nil, ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		return nil, ErrPoolBusy
	}
	p.updateMetrics()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.Output, result.Err
	}
}

// SubmitWithRetry is Submit that tries again up to retries more times while
// the queue is full, waiting a little longer before every retry.
func (p *WorkerPool) SubmitWithRetry(ctx context.Context, data []byte, opts Options, retries int) (*Output, error) {
	for i := 0; ; i++ {
		out, err := p.Submit(ctx, data, opts)
		if !errors.Is(err, ErrPoolBusy) || i >= retries {
			return out, err
		}
		metrics.RecordPoolRetry()

		// Linear backoff
		waitTime := time.Duration(i+1) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// Stop drains the queue and waits for running jobs to finish
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
		slog.Info("worker pool stopped")
	})
}

// Stats returns the number of running and queued jobs
func (p *WorkerPool) Stats() (active, queued int) {
	return int(p.active.Load()), len(p.jobs)
}

func (p *WorkerPool) updateMetrics() {
	active, queued := p.Stats()
	metrics.UpdateWorkerPoolMetrics(queued, active)
}
