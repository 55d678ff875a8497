package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Unit is one piece of work executed on the event loop.
//
// The context is the submitting caller's context, marked so that nested
// submissions from inside the unit run inline.
type Unit func(ctx context.Context) (any, error)

// Supervisor owns the process-wide event loop.
//
// Construct one at process start-up and pass it to every component that
// drives the remote engine. The zero value is not usable; call New.
type Supervisor struct {
	queue  *workQueue
	clock  *Clock
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger used for loop lifecycle and unit failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used to stamp units.
func WithClock(c *Clock) Option {
	return func(s *Supervisor) {
		if c != nil {
			s.clock = c
		}
	}
}

// New creates a supervisor. The loop is not running until Start or the
// first Submit.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		queue:  newWorkQueue(),
		clock:  NewClock(),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loopKey marks contexts handed to units running on a given supervisor.
type loopKey struct{}

// Start launches the loop goroutine. It is idempotent: a second call, or a
// call after Stop, does nothing.
//
// Cancelling ctx makes the loop exit; units still queued at that point fail
// with ErrStopped.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	go func() {
		defer close(s.done)
		if err := s.run(ctx); err != nil {
			s.logger.Info("event loop exited", "reason", err)
		}
		s.failPending()
	}()
}

// Running reports whether the loop goroutine has been started and not
// stopped.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped
}

// Stop closes the queue, lets the loop finish every unit already queued, and
// waits for the loop goroutine to exit. Safe to call more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	wasStarted := s.started
	s.stopped = true
	s.mu.Unlock()

	s.queue.Close()
	if wasStarted {
		<-s.done
		return
	}
	s.failPending()
}

// Submit schedules fn on the loop and returns its Future.
//
// If the loop has not been started it is started with a background context.
// If ctx already belongs to a unit running on this supervisor, fn runs
// inline and the returned Future is already complete.
func (s *Supervisor) Submit(ctx context.Context, name string, fn Unit) *Future {
	f := newFuture()

	if owner, _ := ctx.Value(loopKey{}).(*Supervisor); owner == s {
		seq := s.clock.Next()
		v, err := s.execute(ctx, seq, name, fn)
		f.complete(v, err)
		return f
	}

	s.Start(context.Background())

	w := work{
		seq:    s.clock.Next(),
		name:   name,
		ctx:    ctx,
		fn:     fn,
		future: f,
	}
	if !s.queue.Enqueue(w) {
		f.complete(nil, fmt.Errorf("submit %q: %w", name, ErrStopped))
		return f
	}

	s.logger.Debug("unit submitted", "unit", name, "seq", w.seq)
	return f
}

// RunBlocking submits fn and blocks until the loop has executed it.
//
// The wait itself is not abandoned when ctx is cancelled. fn receives ctx
// and is expected to honor it, so cancellation surfaces as fn's error.
func (s *Supervisor) RunBlocking(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	_, err := s.Submit(ctx, name, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	}).Wait()
	return err
}

// Do runs fn on the loop and returns its typed result.
func Do[T any](ctx context.Context, s *Supervisor, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := s.Submit(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}).Wait()
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// run is the loop body.
// CRITICAL: only this goroutine executes queued units.
func (s *Supervisor) run(ctx context.Context) error {
	s.logger.Info("event loop starting")

	for {
		// Try non-blocking dequeue first
		w, ok := s.queue.TryDequeue()
		if ok {
			v, err := s.execute(w.ctx, w.seq, w.name, w.fn)
			w.future.complete(v, err)
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("event loop stopping: context cancelled")
			s.queue.Close()
			return ctx.Err()

		case <-s.queue.Wait():
			// The signal channel closes when the queue is closed, so this
			// case fires immediately once Stop has been called.
			if s.queue.Closed() && s.queue.Len() == 0 {
				s.logger.Info("event loop stopping: queue closed")
				return nil
			}
		}
	}
}

// execute runs one unit, converting a panic into a *PanicError.
func (s *Supervisor) execute(ctx context.Context, seq int64, name string, fn Unit) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Unit: name, Seq: seq, Value: r}
			v = nil
			s.logger.Error("unit panicked", "unit", name, "seq", seq, "panic", r)
		}
	}()

	v, err = fn(context.WithValue(ctx, loopKey{}, s))
	if err != nil {
		s.logger.Debug("unit failed", "unit", name, "seq", seq, "error", err)
	}
	return v, err
}

// failPending completes every unit left in the queue with ErrStopped.
func (s *Supervisor) failPending() {
	for _, w := range s.queue.Drain() {
		w.future.complete(nil, fmt.Errorf("unit %q: %w", w.name, ErrStopped))
	}
}
