package pipeline

import (
	"context"
	"fmt"

	"github.com/ppiankov/chartrisk/internal/worker"
)

// callJob adapts one indexed collaborator call to worker.Job
type callJob[T any] struct {
	index int
	fn    func(i int) (T, error)
}

// Execute implements worker.Job. A panic is captured and re-raised on the
// calling goroutine by fanOut.
func (j *callJob[T]) Execute(_ context.Context) (res worker.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = &callResult[T]{index: j.index, err: fmt.Errorf("panic: %v", p), panicked: p}
		}
	}()
	v, err := j.fn(j.index)
	return &callResult[T]{index: j.index, value: v, err: err}
}

type callResult[T any] struct {
	index    int
	value    T
	err      error
	panicked any
}

// GetError implements worker.Result
func (r *callResult[T]) GetError() error {
	return r.err
}

// fanOut runs fn for every index in [0, n) on a bounded pool and returns
// values and errors by index. Submission stops as soon as ctx is done and
// queued calls are dropped; cancelled reports that the partial results
// must be discarded.
func fanOut[T any](ctx context.Context, workers, n int, fn func(i int) (T, error)) (values []T, errs []error, cancelled bool) {
	values = make([]T, n)
	errs = make([]error, n)
	if n == 0 {
		return values, errs, ctx.Err() != nil
	}

	pool := worker.NewPool(ctx, workers)
	pool.Start()

	for i := 0; i < n; i++ {
		if !pool.Submit(&callJob[T]{index: i, fn: fn}) {
			cancelled = true
			break
		}
	}

	var panicked any
	for _, res := range pool.Wait() {
		cr := res.(*callResult[T])
		values[cr.index] = cr.value
		errs[cr.index] = cr.err
		if cr.panicked != nil && panicked == nil {
			panicked = cr.panicked
		}
	}
	if panicked != nil {
		panic(panicked)
	}

	if ctx.Err() != nil {
		cancelled = true
	}
	return values, errs, cancelled
}
