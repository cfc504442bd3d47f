package backtest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/fxlab/session-levels/pkg/types"
)

// Job is one symbol's simulation task. Symbol streams are mutually
// independent, so jobs share no mutable state and need no locking.
type Job struct {
	Symbol string
	Bars   []types.Bar
	Run    func(symbol string, bars []types.Bar) (*Results, error)
}

// JobResult is the outcome of one symbol job. A failed symbol halts only its
// own stream; the batch continues.
type JobResult struct {
	Symbol   string
	Results  *Results
	Duration time.Duration
	Error    error
}

// WorkerPool runs per-symbol simulations in parallel, one job per symbol.
type WorkerPool struct {
	workerCount int
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewWorkerPool creates a pool. workerCount <= 0 uses all CPUs.
func NewWorkerPool(workerCount, jobBufferSize int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan Job, jobBufferSize),
		resultQueue: make(chan JobResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop closes the queue and waits for in-flight jobs to drain.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit enqueues a job.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the channel of completed jobs.
func (wp *WorkerPool) Results() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		start := time.Now()
		res, err := job.Run(job.Symbol, job.Bars)
		wp.resultQueue <- JobResult{
			Symbol:   job.Symbol,
			Results:  res,
			Duration: time.Since(start),
			Error:    err,
		}
	}
}
