package engine

import (
	"context"
	"sync"
)

// Loop is a single-consumer callback queue. Request goroutines Post their
// callbacks; the host drains them on its own goroutine with Run or Drain so
// application code only ever sees callbacks from one thread.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	ready chan struct{}
}

func NewLoop() *Loop {
	return &Loop{ready: make(chan struct{}, 1)}
}

// Post enqueues fn. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// Drain runs every queued callback and returns how many ran.
func (l *Loop) Drain() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Run drains callbacks as they arrive until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ready:
		}
	}
}

// Wait blocks until at least one callback is queued or ctx is done, then drains.
func (l *Loop) Wait(ctx context.Context) (int, error) {
	for {
		if n := l.Drain(); n > 0 {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-l.ready:
		}
	}
}
