package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	l := NewLimiter(2)
	var (
		running int32
		peak    int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func() error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 0, l.InFlight())
}

func TestLimiterAcquireHonoursContext(t *testing.T) {
	l := NewLimiter(1)
	require.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	l.Release()
	assert.Equal(t, 0, l.InFlight())
}

func TestLimiterDoReturnsError(t *testing.T) {
	l := NewLimiter(0)
	assert.Equal(t, 1, l.Capacity())

	boom := errors.New("boom")
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return boom }), boom)
	assert.Equal(t, 0, l.InFlight())
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	assert.Panics(t, func() { NewLimiter(1).Release() })
}
