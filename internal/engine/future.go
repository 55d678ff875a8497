package engine

import (
	"context"
	"sync"
)

// Future is the single-use result slot of one submitted unit.
//
// It is completed exactly once by the loop; any number of goroutines may
// wait on it.
type Future struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(v any, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the unit has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the unit has finished and returns its outcome.
func (f *Future) Wait() (any, error) {
	<-f.done
	return f.value, f.err
}

// Await is Wait bounded by ctx. When ctx ends first the unit keeps running
// on the loop and ctx.Err() is returned.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
