package upstream

import (
	"context"

	"github.com/Borislavv/bracket-bff/internal/shared/rate"
)

// job is one unit of paced work: run, dispatched no sooner than the queue's
// rate budget allows, replying on done exactly once.
type job struct {
	ctx  context.Context
	run  func(ctx context.Context) (any, error)
	done chan jobResult
}

type jobResult struct {
	val any
	err error
}

// dispatchQueue is the single FIFO through which every upstream HTTP call
// passes. One worker goroutine drains it, so the whole client — regardless
// of how many goroutines are assembling a tournament concurrently — never
// exceeds the configured request rate.
type dispatchQueue struct {
	jitter *rate.Jitter
	jobs   chan job
}

func newDispatchQueue(ctx context.Context, jitter *rate.Jitter) *dispatchQueue {
	q := &dispatchQueue{
		jitter: jitter,
		jobs:   make(chan job, 64),
	}
	go q.run(ctx)
	return q
}

func (q *dispatchQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			if err := q.jitter.Wait(j.ctx); err != nil {
				j.done <- jobResult{err: err}
				continue
			}
			val, err := j.run(j.ctx)
			j.done <- jobResult{val: val, err: err}
		}
	}
}

// submit enqueues run and blocks until it has been paced, executed, and
// replied to, or ctx is canceled first.
func (q *dispatchQueue) submit(ctx context.Context, run func(ctx context.Context) (any, error)) (any, error) {
	j := job{ctx: ctx, run: run, done: make(chan jobResult, 1)}
	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-j.done:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
