package importer

import (
	"context"
	"sync"
)

// DefaultMaxConcurrentBatches caps simultaneously in-flight batch commits.
const DefaultMaxConcurrentBatches = 3

// Limiter bounds concurrent batch commits with a semaphore. Dispatch of a
// new batch blocks in Acquire until a slot frees, which is what
// back-pressures row accumulation against slow commits.
type Limiter struct {
	sem chan struct{}

	mu     sync.RWMutex
	active int
}

func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentBatches
	}
	return &Limiter{sem: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a commit slot frees or ctx is done.
// Callers must Release exactly once per successful Acquire.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.sem
}

// Active returns the number of in-flight commits.
func (l *Limiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Cap returns the configured concurrency limit.
func (l *Limiter) Cap() int {
	return cap(l.sem)
}
