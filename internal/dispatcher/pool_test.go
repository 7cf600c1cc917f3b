package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPool(t *testing.T, n int) *Pool {
	t.Helper()
	p := New(Config{Concurrency: n})
	p.Start()
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
	return p
}

func TestDo_PropagatesError(t *testing.T) {
	p := startPool(t, 1)
	boom := errors.New("boom")
	assert.ErrorIs(t, p.Do(context.Background(), func(ctx context.Context) error { return boom }), boom)
}

func TestDo_RecoversPanic(t *testing.T) {
	p := startPool(t, 1)
	err := p.Do(context.Background(), func(ctx context.Context) error { panic("bad page") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad page")

	// worker survives
	assert.NoError(t, p.Do(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestDo_BoundsConcurrency(t *testing.T) {
	p := startPool(t, 2)
	var running, peak int32
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			errs <- p.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, <-errs)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestDo_ContextCancelledWhileQueued(t *testing.T) {
	p := startPool(t, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestDo_AfterStop(t *testing.T) {
	p := New(Config{Concurrency: 1})
	p.Start()
	require.NoError(t, p.Stop(context.Background()))
	assert.ErrorIs(t, p.Do(context.Background(), func(ctx context.Context) error { return nil }), ErrStopped)
}
