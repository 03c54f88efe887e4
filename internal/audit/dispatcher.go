package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the queue is full instead of making
	// the auth call wait for room.
	DropIfFull bool
}

// Dispatcher hands events to a sink on one background goroutine, in the
// order they were emitted.
type Dispatcher struct {
	sink   Sink
	queue  chan Event
	block  bool
	logger *zap.Logger

	// mu orders Emit against Close so nothing is sent on a closed queue.
	mu       sync.RWMutex
	closed   bool
	finished chan struct{}

	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when auditing is off.
// All methods accept a nil receiver.
func NewDispatcher(cfg Config, sink Sink, logger *zap.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		sink:     sink,
		queue:    make(chan Event, cfg.BufferSize),
		block:    !cfg.DropIfFull,
		logger:   logger,
		finished: make(chan struct{}),
	}
	go d.drain()
	return d
}

func (d *Dispatcher) drain() {
	defer close(d.finished)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event. In blocking mode it waits for room or for ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.block {
		select {
		case d.queue <- event:
		case <-ctx.Done():
		}
		return
	}

	select {
	case d.queue <- event:
	default:
		if n := d.dropped.Add(1); n == 1 || n%1000 == 0 {
			d.logger.Warn("audit queue full, dropping events",
				zap.String("event", event.EventType),
				zap.Uint64("dropped_total", n))
		}
	}
}

// Close stops accepting events and returns once the queued ones reached the
// sink. It is safe to call more than once.
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
	<-d.finished
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
