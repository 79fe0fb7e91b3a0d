package audit

import (
	"context"
	"sync"
)

// Config controls dispatcher buffering and the event hygiene applied before
// an event leaves the caller.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// MaskIP reduces Event.IP to a prefix. Nil clears the field so a raw
	// address is never queued.
	MaskIP func(string) string
	// OnDrop runs once for every event discarded on a full buffer.
	OnDrop func()
}

// Dispatcher hands events to a sink on one background goroutine so security
// checks never wait on audit I/O.
type Dispatcher struct {
	sink   Sink
	maskIP func(string) string
	onDrop func()
	block  bool

	// mu guards closed and the send side of queue: senders hold it shared,
	// Close holds it exclusively while closing the channel.
	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewDispatcher starts the dispatcher goroutine. A disabled config returns
// nil, and every method is a no-op on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:   sink,
		maskIP: cfg.MaskIP,
		onDrop: cfg.OnDrop,
		block:  !cfg.DropIfFull,
		queue:  make(chan Event, max(cfg.BufferSize, 1)),
		done:   make(chan struct{}),
	}
	if d.onDrop == nil {
		d.onDrop = func() {}
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit masks the event IP and queues the event. With DropIfFull a full
// buffer drops it; otherwise Emit waits for room or for ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	event.IP = d.mask(event.IP)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if !d.block {
		select {
		case d.queue <- event:
		default:
			d.onDrop()
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) mask(ip string) string {
	if ip == "" || d.maskIP == nil {
		return ""
	}
	return d.maskIP(ip)
}

// Close stops accepting events, waits for in-flight Emit calls, and returns
// once every queued event reached the sink. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
