package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when the dispatch queue cannot take another event.
var ErrQueueFull = errors.New("notify: queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("notify: publisher closed")

const deliveryTimeout = 5 * time.Second

type delivery struct {
	userID string
	event  Event
}

// AsyncPublisher hands events to a background worker so that callers never
// wait on the transport. Events are dropped when the queue is full.
type AsyncPublisher struct {
	next  Publisher
	queue chan delivery
	log   *zap.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewAsyncPublisher starts a worker delivering to next.
func NewAsyncPublisher(next Publisher, size int, log *zap.Logger) *AsyncPublisher {
	if size < 1 {
		size = 1
	}
	p := &AsyncPublisher{
		next:  next,
		queue: make(chan delivery, size),
		log:   log.Named("async_publisher"),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event without blocking.
func (p *AsyncPublisher) Publish(ctx context.Context, userID string, ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- delivery{userID: userID, event: ev}:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns how many events were rejected because the queue was full.
func (p *AsyncPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *AsyncPublisher) run() {
	defer close(p.done)

	for d := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := p.next.Publish(ctx, d.userID, d.event); err != nil {
			p.log.Warn("event delivery failed",
				zap.String("user_id", d.userID),
				zap.String("type", d.event.Type),
				zap.Error(err))
		}
		cancel()
	}
}

var _ Publisher = (*AsyncPublisher)(nil)
