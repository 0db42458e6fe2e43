package locus

import (
	"context"
	"sync"
)

// future is the pending half of a ServiceInstance: an asynchronous
// construction that will eventually produce a value or fail. Awaiting a
// future is one of the engine's well-defined suspension points.
type future struct {
	done chan struct{}
	once sync.Once

	value any
	err   error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

// complete resolves the future exactly once. Later calls are ignored.
func (f *future) complete(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// await blocks until the future completes or ctx is cancelled.
func (f *future) await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// peek returns the result without blocking. ok is false while the
// future is still pending.
func (f *future) peek() (value any, err error, ok bool) {
	select {
	case <-f.done:
		return f.value, f.err, true
	default:
		return nil, nil, false
	}
}
