// Package limiter caps how many conversions run in-process at once.
package limiter

import (
	"context"
	"sync/atomic"
)

type Limiter struct {
	sem      chan struct{}
	inflight atomic.Int64
}

// New returns a limiter with max slots. max <= 0 falls back to 4.
func New(max int) *Limiter {
	if max <= 0 {
		max = 4
	}
	return &Limiter{sem: make(chan struct{}, max)}
}

// TryAcquire reserves a slot without waiting. The returned release must be
// called exactly once when ok is true.
func (l *Limiter) TryAcquire() (release func(), ok bool) {
	select {
	case l.sem <- struct{}{}:
		l.inflight.Add(1)
		return l.releaser(), true
	default:
		return nil, false
	}
}

// Acquire waits for a slot until ctx is done.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		l.inflight.Add(1)
		return l.releaser(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Limiter) releaser() func() {
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.inflight.Add(-1)
			<-l.sem
		}
	}
}

// InFlight is the number of slots currently held.
func (l *Limiter) InFlight() int { return int(l.inflight.Load()) }

// Cap is the number of slots.
func (l *Limiter) Cap() int { return cap(l.sem) }
