package limiter

import (
    "context"
    "errors"
)

// ErrBusy is returned when no slot frees up before the context ends.
var ErrBusy = errors.New("limiter: no free slot")

// Limiter caps how many toolkit operations run at once. PDF and image work
// holds whole documents in memory, so the cap bounds peak memory too.
type Limiter struct {
    slots chan struct{}
}

func New(maxInflight int) *Limiter {
    if maxInflight <= 0 { maxInflight = 1 }
    return &Limiter{slots: make(chan struct{}, maxInflight)}
}

// Allow tries to reserve a slot without waiting.
// Returns a release function and true if allowed; otherwise a no-op and false.
func (l *Limiter) Allow() (func(), bool) {
    select {
    case l.slots <- struct{}{}:
        return l.release, true
    default:
        return func() {}, false
    }
}

// Acquire waits for a slot until ctx is done. The returned error wraps both
// ErrBusy and the context's error.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
    if release, ok := l.Allow(); ok {
        return release, nil
    }
    select {
    case l.slots <- struct{}{}:
        return l.release, nil
    case <-ctx.Done():
        return func() {}, errors.Join(ErrBusy, ctx.Err())
    }
}

// InFlight reports the number of held slots.
func (l *Limiter) InFlight() int { return len(l.slots) }

// Capacity reports the slot count.
func (l *Limiter) Capacity() int { return cap(l.slots) }

func (l *Limiter) release() { <-l.slots }
