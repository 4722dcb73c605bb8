package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopDrainRunsOnCaller(t *testing.T) {
	l := NewLoop()
	var ran []int
	l.Post(func() { ran = append(ran, 1) })
	l.Post(func() { ran = append(ran, 2) })
	if n := l.Drain(); n != 2 {
		t.Fatalf("want 2 drained got %d", n)
	}
	if len(ran) != 2 || ran[0] != 1 || ran[1] != 2 {
		t.Fatalf("unexpected order: %v", ran)
	}
	if n := l.Drain(); n != 0 {
		t.Fatalf("queue should be empty, drained %d", n)
	}
}

func TestLoopWaitFromWorker(t *testing.T) {
	l := NewLoop()
	pool := NewWorkerPool(2, 8)
	defer pool.Close()

	var fired int32
	pool.Go(func() { l.Post(func() { atomic.AddInt32(&fired, 1) }) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := l.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatal("callback did not run")
	}
}

func TestInlineRunner(t *testing.T) {
	done := false
	Inline{}.Go(func() { done = true })
	if !done {
		t.Fatal("inline runner must run synchronously")
	}
}
