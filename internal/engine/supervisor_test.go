package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	s := New()
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func TestSupervisor_StartIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Start(ctx)
	s.Start(ctx)
	s.Start(ctx)
	assert.True(t, s.Running())

	// A single loop goroutine means units never overlap.
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunBlocking(ctx, "probe", func(context.Context) error {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())

	s.Stop()
	assert.False(t, s.Running())
}

func TestSupervisor_SubmitAutoStarts(t *testing.T) {
	s := New()
	t.Cleanup(s.Stop)

	v, err := s.Submit(context.Background(), "auto", func(context.Context) (any, error) {
		return 42, nil
	}).Wait()

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, s.Running())
}

func TestSupervisor_RunBlockingPropagatesError(t *testing.T) {
	s := newTestSupervisor(t)
	boom := errors.New("boom")

	err := s.RunBlocking(context.Background(), "failing", func(context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestSupervisor_PanicDoesNotKillLoop(t *testing.T) {
	s := newTestSupervisor(t)
	ctx := context.Background()

	err := s.RunBlocking(ctx, "panicky", func(context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.True(t, IsPanicError(err))

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "panicky", pe.Unit)
	assert.Equal(t, "kaboom", pe.Value)

	// Loop is still alive.
	got, err := Do(ctx, s, "after", func(context.Context) (string, error) {
		return "alive", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alive", got)
}

func TestSupervisor_DoTyped(t *testing.T) {
	s := newTestSupervisor(t)

	got, err := Do(context.Background(), s, "list", func(context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	empty, err := Do(context.Background(), s, "nil-slice", func(context.Context) ([]string, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, empty)

	zero, err := Do(context.Background(), s, "err", func(context.Context) (int, error) {
		return 7, errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 0, zero, "value is discarded on error")
}

func TestSupervisor_NestedSubmitRunsInline(t *testing.T) {
	s := newTestSupervisor(t)

	got, err := Do(context.Background(), s, "outer", func(ctx context.Context) (string, error) {
		return Do(ctx, s, "inner", func(context.Context) (string, error) {
			return "nested", nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, "nested", got)
}

func TestSupervisor_UnitSeesCallerContext(t *testing.T) {
	s := newTestSupervisor(t)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "caller")

	got, err := Do(ctx, s, "ctx", func(ctx context.Context) (string, error) {
		v, _ := ctx.Value(key{}).(string)
		return v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "caller", got)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.RunBlocking(cancelled, "cancelled", func(ctx context.Context) error {
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupervisor_SubmitAfterStop(t *testing.T) {
	s := New()
	s.Start(context.Background())
	s.Stop()

	err := s.RunBlocking(context.Background(), "late", func(context.Context) error {
		t.Fatal("unit must not run after Stop")
		return nil
	})
	assert.ErrorIs(t, err, ErrStopped)

	// Start after Stop is a no-op.
	s.Start(context.Background())
	assert.False(t, s.Running())
}

func TestSupervisor_StopDrainsQueuedUnits(t *testing.T) {
	s := New()
	s.Start(context.Background())

	release := make(chan struct{})
	var ran atomic.Int32

	first := s.Submit(context.Background(), "blocker", func(context.Context) (any, error) {
		<-release
		ran.Add(1)
		return nil, nil
	})
	var queued []*Future
	for i := 0; i < 5; i++ {
		queued = append(queued, s.Submit(context.Background(), fmt.Sprintf("q%d", i), func(context.Context) (any, error) {
			ran.Add(1)
			return nil, nil
		}))
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	close(release)
	<-stopped

	_, err := first.Wait()
	require.NoError(t, err)
	for _, f := range queued {
		_, err := f.Wait()
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(6), ran.Load())
}

func TestSupervisor_ContextCancelFailsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()
	s.Start(ctx)
	t.Cleanup(s.Stop)

	release := make(chan struct{})
	blocker := s.Submit(context.Background(), "blocker", func(context.Context) (any, error) {
		<-release
		return nil, nil
	})
	pending := s.Submit(context.Background(), "pending", func(context.Context) (any, error) {
		return "ran", nil
	})

	cancel()
	close(release)

	_, err := blocker.Wait()
	require.NoError(t, err)

	// Either the loop picked the pending unit up before noticing the
	// cancellation, or it failed it with ErrStopped. It never hangs.
	select {
	case <-pending.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pending unit never completed")
	}
	v, err := pending.Wait()
	if err != nil {
		assert.ErrorIs(t, err, ErrStopped)
	} else {
		assert.Equal(t, "ran", v)
	}
}

func TestSupervisor_ConcurrentCallersGetOwnResults(t *testing.T) {
	s := newTestSupervisor(t)

	const callers = 50
	var wg sync.WaitGroup
	results := make([]int, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Do(context.Background(), s, "square", func(context.Context) (int, error) {
				return i * i, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
}

func TestFuture_AwaitHonorsContext(t *testing.T) {
	s := newTestSupervisor(t)

	release := make(chan struct{})
	f := s.Submit(context.Background(), "slow", func(context.Context) (any, error) {
		<-release
		return "done", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}
