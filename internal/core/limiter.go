package core

// limiter.go bounds how many datasets are cleaned at once.
//
// Each clean holds the whole table in memory, so the HTTP surface takes a
// slot before loading a request body. When every slot is busy a caller waits
// up to maxWait and then fails with ErrBusy. WaitForDrain lets shutdown wait
// for in-flight runs.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when every clean slot stays occupied for the whole wait.
var ErrBusy = errors.New("too many concurrent cleans")

// DefaultMaxConcurrent is the slot count used when none is configured.
const DefaultMaxConcurrent = 4

// DefaultMaxWait is how long Acquire waits for a slot by default.
const DefaultMaxWait = 30 * time.Second

// Limiter is a counting semaphore for clean runs.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter allows at most maxConcurrent runs; Acquire gives up after maxWait.
// Non-positive arguments select the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's maxWait.
// It returns ErrBusy when the wait runs out, including when ctx's deadline
// passes first, and ctx's error only when ctx is cancelled.
// Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.inc(1)
		return nil
	case <-waitCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return ErrBusy
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.inc(1)
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.inc(-1)
	<-l.slots
}

func (l *Limiter) inc(n int) {
	l.mu.Lock()
	l.active += n
	l.mu.Unlock()
}

// Active returns the number of runs holding a slot.
func (l *Limiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Capacity returns the slot count.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no run holds a slot or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of a Limiter.
type LimiterStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Capacity  int `json:"capacity"`
}

// Status returns the current slot usage.
func (l *Limiter) Status() LimiterStatus {
	active := l.Active()
	return LimiterStatus{
		Active:    active,
		Available: cap(l.slots) - len(l.slots),
		Capacity:  cap(l.slots),
	}
}
