package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"leaderboardkit/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

// anyEvent keys subscriptions that receive every event type.
const anyEvent core.EventType = "*"

// asyncQueueSize bounds events waiting for the async dispatcher.
const asyncQueueSize = 1024

type subscription struct {
	id uint64
	fn func(context.Context, core.Event)
}

// EventBus fans SDK events out to sinks such as analytics hooks, the
// realtime hub and webhooks. Handlers run in registration order. In async
// mode a single dispatcher goroutine preserves publish order, so
// identity_set is always seen before the device_id_assigned it causes.
type EventBus struct {
	mode   DispatchMode
	mu     sync.RWMutex
	subs   map[core.EventType][]subscription
	nextID uint64

	queue     chan core.Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64
}

func NewEventBus(mode DispatchMode) *EventBus {
	eb := &EventBus{
		mode: mode,
		subs: make(map[core.EventType][]subscription),
		done: make(chan struct{}),
	}
	if mode == DispatchAsync {
		eb.queue = make(chan core.Event, asyncQueueSize)
		eb.wg.Add(1)
		go eb.run()
	}
	return eb
}

func (e *EventBus) run() {
	defer e.wg.Done()
	for {
		select {
		case ev := <-e.queue:
			e.dispatch(context.Background(), ev)
		case <-e.done:
			for {
				select {
				case ev := <-e.queue:
					e.dispatch(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Close delivers events already queued, then stops the dispatcher. Events
// published afterwards are dropped. Close is idempotent.
func (e *EventBus) Close() {
	e.closeOnce.Do(func() { close(e.done) })
	e.wg.Wait()
}

// Subscribe registers a handler for one event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.subs[typ] = append(e.subs[typ], subscription{id: id, fn: handler})
	return func() { e.unsubscribe(typ, id) }
}

// SubscribeAll registers handler for every event type, including ones
// added later.
func (e *EventBus) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return e.Subscribe(anyEvent, handler)
}

func (e *EventBus) unsubscribe(typ core.EventType, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.subs[typ]
	for i, s := range subs {
		if s.id == id {
			e.subs[typ] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends an event to subscribers. Async publishes never block: when
// the queue is full or the bus is closed the event is dropped and counted.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	select {
	case <-e.done:
		e.dropped.Add(1)
		return
	default:
	}
	if e.mode != DispatchAsync {
		e.dispatch(ctx, ev)
		return
	}
	select {
	case e.queue <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded.
func (e *EventBus) Dropped() uint64 { return e.dropped.Load() }

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := make([]subscription, 0, len(e.subs[ev.Type])+len(e.subs[anyEvent]))
	subs = append(subs, e.subs[ev.Type]...)
	subs = append(subs, e.subs[anyEvent]...)
	e.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	for _, s := range subs {
		invoke(ctx, s.fn, ev)
	}
}

// invoke isolates the bus from a panicking handler.
func invoke(ctx context.Context, fn func(context.Context, core.Event), ev core.Event) {
	defer func() { _ = recover() }()
	fn(ctx, ev)
}
