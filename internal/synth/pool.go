package synth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/denniszollo/peregrine/internal/metrics"
)

// chunkJob is a run of consecutive epochs synthesized as one unit.
type chunkJob struct {
	index int // position of the chunk in the output
	first int // first epoch index
	count int // number of epochs
}

// chunkResult is the output of a single chunk.
type chunkResult struct {
	index   int
	samples []int8
	err     error
}

// chunkFunc synthesizes one chunk.
type chunkFunc func(ctx context.Context, job chunkJob) ([]int8, error)

// WorkerPool manages a fixed number of goroutines synthesizing chunks in parallel.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Run executes all jobs and returns their samples indexed by job.index.
// The first chunk error cancels the remaining work and is returned.
// progress, if set, is called from the collecting goroutine with the sample
// count of each completed chunk.
func (wp *WorkerPool) Run(ctx context.Context, jobs []chunkJob, gen chunkFunc, progress func(samples int)) ([][]int8, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan chunkJob, wp.workers*2)
	results := make(chan chunkResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				start := time.Now()
				samples, err := gen(ctx, job)
				metrics.RecordChunk(time.Since(start), len(samples), err)
				select {
				case results <- chunkResult{index: job.index, samples: samples, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][]int8, len(jobs))
	var firstErr error
	var done int
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				wp.logger.Warn("chunk synthesis failed",
					"chunk", res.index,
					"error", res.err,
				)
				cancel()
			}
			continue
		}
		out[res.index] = res.samples
		done++
		if progress != nil {
			progress(len(res.samples))
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if done != len(jobs) {
		return nil, ctx.Err()
	}
	return out, nil
}
