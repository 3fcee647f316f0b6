// Package parallel provides the fork/join utilities used by the CPU backend.
package parallel

import (
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/born-ml/tensorcore/internal/envconfig"
)

// Config controls chunked parallel loops.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig reads BORN_NUM_THREADS and BORN_PARALLEL_MIN_CHUNK.
func DefaultConfig() Config {
	n := envconfig.NumThreads()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: int(envconfig.ParallelMinChunk()),
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForRange splits [0, n) into contiguous chunks and runs f on each, at most
// cfg.NumWorkers at a time. It returns once every chunk has completed.
func ForRange(n int, f func(start, end int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n <= cfg.MinChunkSize {
		f(0, n)
		return
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			f(start, end)
			return nil
		})
	}
	_ = g.Wait()
}

// Pool bounds the number of goroutines forked by divide-and-conquer work.
// When the pool is saturated, forked work runs inline on the caller, so a
// join never waits on a task that cannot be scheduled.
type Pool struct {
	sem     *semaphore.Weighted
	workers int
}

// NewPool creates a pool allowing workers-1 extra goroutines besides the caller.
func NewPool(workers int) *Pool {
	p := &Pool{workers: max(workers, 1)}
	if p.workers > 1 {
		p.sem = semaphore.NewWeighted(int64(p.workers - 1))
	}
	return p
}

var defaultPool = sync.OnceValue(func() *Pool {
	return NewPool(envconfig.NumThreads())
})

// Default returns the process-wide pool sized by BORN_NUM_THREADS.
func Default() *Pool {
	return defaultPool()
}

// Workers returns the pool width.
func (p *Pool) Workers() int {
	return p.workers
}

// Fork starts f and returns a function that blocks until f has returned.
// If no worker slot is free, f runs to completion before Fork returns.
func (p *Pool) Fork(f func()) (join func()) {
	if p.sem == nil || !p.sem.TryAcquire(1) {
		f()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer p.sem.Release(1)
		f()
	}()
	return func() { <-done }
}

// Bisect runs run over [start, end). While split reports true for the current
// range it is halved at the midpoint; the lower half is forked and the upper
// half handled by the caller, which then joins.
func (p *Pool) Bisect(start, end int, split func(start, end int) bool, run func(start, end int)) {
	if end-start < 2 || !split(start, end) {
		run(start, end)
		return
	}

	mid := start + (end-start)/2
	join := p.Fork(func() {
		p.Bisect(start, mid, split, run)
	})
	p.Bisect(mid, end, split, run)
	join()
}
