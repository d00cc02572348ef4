// Package worker runs document and collaborator jobs on bounded goroutine
// pools and throttles calls to external collaborators.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type task struct {
	seq int
	job Job
}

// Pool runs jobs on a fixed number of goroutines.
//
// Jobs receive the pool context, which is cancelled by Shutdown or when the
// parent context passed to NewPool is done. Jobs still queued at that point
// are dropped. Submit and Wait must be called from the same goroutine.
type Pool struct {
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan task
	wg      sync.WaitGroup
	closed  atomic.Bool

	mu        sync.Mutex
	results   []Result // Indexed by submission order
	submitted int
}

// NewPool creates a pool bound to ctx. workers <= 0 means one worker.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	pctx, cancel := context.WithCancel(ctx)
	return &Pool{
		workers: workers,
		ctx:     pctx,
		cancel:  cancel,
		queue:   make(chan task, workers*2),
	}
}

// Workers returns the concurrency cap
func (p *Pool) Workers() int {
	return p.workers
}

// Start launches the worker goroutines
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			result := t.job.Execute(p.ctx)
			p.mu.Lock()
			p.results[t.seq] = result
			p.mu.Unlock()
		}
	}
}

// Submit queues job, blocking while the queue is full. It reports false
// when the pool is shut down, its context is done or Wait was called.
func (p *Pool) Submit(job Job) bool {
	if p.closed.Load() || p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	seq := p.submitted
	p.submitted++
	p.results = append(p.results, nil)
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- task{seq: seq, job: job}:
		return true
	}
}

// Wait stops accepting jobs, waits for the workers and returns the results
// of executed jobs in submission order.
func (p *Pool) Wait() []Result {
	if p.closed.CompareAndSwap(false, true) {
		close(p.queue)
	}
	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, 0, len(p.results))
	for _, r := range p.results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Shutdown cancels the pool context and waits for running jobs to return.
// Queued jobs are dropped.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
