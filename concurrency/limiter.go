package concurrency

import (
	"context"
	"fmt"
)

// Limiter bounds how many callers run a section at once.
type Limiter struct {
	tickets chan struct{}
}

// NewLimiter returns a limiter with n slots. n below 1 is treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{tickets: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.tickets <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for a free slot: %w", ctx.Err())
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.tickets <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	select {
	case <-l.tickets:
	default:
		panic("concurrency: Release without Acquire")
	}
}

// Do runs fn while holding a slot.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// InFlight reports the number of slots in use.
func (l *Limiter) InFlight() int {
	return len(l.tickets)
}

// Capacity reports the number of slots.
func (l *Limiter) Capacity() int {
	return cap(l.tickets)
}
