package taskpool

import (
	"context"

	uuid "github.com/hashicorp/go-uuid"
	"golang.org/x/sync/semaphore"
)

// Task is a unit of work executed by the pool. The context is cancelled when
// the handle is cancelled or the pool shuts the task down.
type Task func(ctx context.Context) error

// Handle tracks a single submitted task.
type Handle struct {
	id     string
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// ID returns the task identifier.
func (h *Handle) ID() string { return h.id }

// Cancel asks the task to stop. It is safe to call more than once.
func (h *Handle) Cancel() { h.cancel() }

// Await blocks until the task finishes or ctx is done. It returns the task's
// error, or the context error if the wait was abandoned.
func (h *Handle) Await(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the task finishes.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Pool bounds how many tasks run at once.
type Pool struct {
	sem *semaphore.Weighted
}

// New returns a pool running at most limit tasks concurrently. A
// non-positive limit is treated as 1.
func New(limit int64) *Pool {
	if limit <= 0 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(limit)}
}

// Submit schedules fn and returns its handle. Submit blocks while the pool
// is full; a cancelled ctx abandons the submission.
func (p *Pool) Submit(ctx context.Context, fn Task) (*Handle, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	tctx, cancel := context.WithCancel(ctx)
	h := &Handle{id: id, done: make(chan struct{}), cancel: cancel}
	go func() {
		defer p.sem.Release(1)
		defer cancel()
		h.err = fn(tctx)
		close(h.done)
	}()
	return h, nil
}
