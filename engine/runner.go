package engine

import (
	"context"
	"sync"
)

// Inline runs work on the calling goroutine. Useful in tests where every
// callback should have fired by the time the operation returns.
type Inline struct{}

func (Inline) Go(fn func()) { fn() }

// Goroutine starts a new goroutine per unit of work.
type Goroutine struct{}

func (Goroutine) Go(fn func()) { go fn() }

// WorkerPool runs work on a fixed set of goroutines fed by a bounded queue.
// When the queue is full Go falls back to a dedicated goroutine so callers
// never block.
type WorkerPool struct {
	queue  chan func()
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{queue: make(chan func(), queue), ctx: ctx, cancel: cancel}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case fn := <-p.queue:
					fn()
				case <-p.ctx.Done():
					return
				}
			}
		}()
	}
	return p
}

func (p *WorkerPool) Go(fn func()) {
	select {
	case p.queue <- fn:
	default:
		go fn()
	}
}

// Close stops the workers. Work still queued is dropped.
func (p *WorkerPool) Close() {
	p.cancel()
	p.wg.Wait()
}
