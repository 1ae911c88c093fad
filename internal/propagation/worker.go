package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/catalog"
)

// propagateJob is a contiguous slice of catalog indices for one worker.
type propagateJob struct {
	start, end int
}

// WorkerPool manages a fixed number of goroutines for parallel SGP4 propagation.
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

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// PropagateBatch propagates every member of cat to t, writing each result into
// out at the member's catalog index. len(out) must equal cat.Len(). It returns
// the number of members that failed, or ctx.Err() if ctx is cancelled before
// the batch completes.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, cat *catalog.Catalog, t time.Time, out []Position) (int, error) {
	n := cat.Len()
	if n == 0 {
		return 0, nil
	}

	// Chunks keep channel traffic low; each worker owns disjoint indices of out.
	chunk := (n + wp.workers*4 - 1) / (wp.workers * 4)
	if chunk < 16 {
		chunk = 16
	}

	jobs := make(chan propagateJob, wp.workers*2)
	failures := make([]int, wp.workers)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				failures[worker] += propagateRange(cat, t, out, job.start, job.end)
			}
		}(i)
	}

	// Feed jobs.
feed:
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		select {
		case jobs <- propagateJob{start: start, end: end}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	failed := 0
	for _, f := range failures {
		failed += f
	}
	return failed, nil
}

// propagateRange fills out[start:end] and returns how many members failed.
func propagateRange(cat *catalog.Catalog, t time.Time, out []Position, start, end int) int {
	failed := 0
	for i := start; i < end; i++ {
		pos, err := cat.At(i).Elements.PositionAt(t)
		if err != nil {
			out[i] = Position{}
			failed++
			continue
		}
		out[i] = Position{ECI: pos, OK: true}
	}
	return failed
}
