package bridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/meshlora/meshlora/internal/mesh"
)

// Semaphore is a channel-based counting semaphore for concurrency control.
type Semaphore struct {
	ch chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity.
func NewSemaphore(cap int) *Semaphore {
	if cap <= 0 {
		cap = 1
	}
	return &Semaphore{ch: make(chan struct{}, cap)}
}

// Acquire blocks until a slot is free or the context is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. Must only be called after a successful Acquire.
func (s *Semaphore) Release() {
	<-s.ch
}

// Available returns the number of free slots.
func (s *Semaphore) Available() int {
	return cap(s.ch) - len(s.ch)
}

// senderQueueDepth bounds the backlog per sender. A sender flooding the
// gate loses excess messages rather than stalling ingestion.
const senderQueueDepth = 16

// inboundText is one gated message queued for response, paired with the
// raw event row it derives from.
type inboundText struct {
	Event      mesh.Event
	RawEventID int64
}

// Dispatcher fans inbound text events out to one FIFO worker per sender,
// so replies to a given sender always follow arrival order, while a
// semaphore caps how many generations run at once across senders.
type Dispatcher struct {
	handle func(context.Context, inboundText)
	sem    *Semaphore

	mu     sync.Mutex
	queues map[string]chan inboundText
	ctx    context.Context
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher running handle for each event, with
// at most workers concurrent invocations.
func NewDispatcher(workers int, handle func(context.Context, inboundText)) *Dispatcher {
	return &Dispatcher{
		handle: handle,
		sem:    NewSemaphore(workers),
		queues: make(map[string]chan inboundText),
	}
}

// Start binds the dispatcher to a context. Workers exit when it is
// cancelled. Must be called before Submit.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
}

// Submit queues an event on its sender's worker, spawning the worker on
// first use. Returns false if the sender's queue is full.
func (d *Dispatcher) Submit(item inboundText) bool {
	sender := item.Event.From
	d.mu.Lock()
	if d.ctx == nil || d.ctx.Err() != nil {
		d.mu.Unlock()
		return false
	}
	q, ok := d.queues[sender]
	if !ok {
		q = make(chan inboundText, senderQueueDepth)
		d.queues[sender] = q
		d.wg.Add(1)
		go d.worker(q)
	}
	d.mu.Unlock()

	select {
	case q <- item:
		return true
	default:
		slog.Warn("Sender queue full, dropping message", "sender", sender)
		return false
	}
}

func (d *Dispatcher) worker(q chan inboundText) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case item := <-q:
			if err := d.sem.Acquire(d.ctx); err != nil {
				return
			}
			d.handle(d.ctx, item)
			d.sem.Release()
		}
	}
}

// Wait blocks until all workers have observed cancellation and exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
