package notification

import (
	"context"
	"log"
	"time"
)

// Async wraps a Notifier with a bounded queue so that slow or failing
// delivery never blocks the trading loop. Alerts are dropped when the
// queue is full.
type Async struct {
	inner   Notifier
	queue   chan Alert
	timeout time.Duration
	done    chan struct{}
}

// NewAsync creates an async wrapper with the given queue depth.
func NewAsync(inner Notifier, depth int) *Async {
	if depth <= 0 {
		depth = 64
	}
	return &Async{
		inner:   inner,
		queue:   make(chan Alert, depth),
		timeout: 10 * time.Second,
		done:    make(chan struct{}),
	}
}

func (a *Async) Name() string { return a.inner.Name() }

// Send enqueues the alert without blocking. Never returns an error; a full
// queue drops the alert.
func (a *Async) Send(ctx context.Context, alert Alert) error {
	select {
	case a.queue <- alert:
	default:
		log.Printf("[notify] queue full, dropping alert: %s", alert.Title)
	}
	return nil
}

// Run drains the queue until ctx is cancelled, then flushes what remains.
// Call it in its own goroutine, exactly once; Wait unblocks after the final
// flush so shutdown can hold the process open until queued alerts are out.
func (a *Async) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			a.flush()
			return
		case alert := <-a.queue:
			a.deliver(alert)
		}
	}
}

// Wait blocks until Run has flushed the queue and returned.
func (a *Async) Wait() {
	<-a.done
}

func (a *Async) flush() {
	for {
		select {
		case alert := <-a.queue:
			a.deliver(alert)
		default:
			return
		}
	}
}

func (a *Async) deliver(alert Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.inner.Send(ctx, alert); err != nil {
		log.Printf("[notify] delivery failed: %v", err)
	}
}
