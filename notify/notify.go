// Package notify delivers breach notifications to an external surface.
// Delivery is fire-and-forget: a slow or broken sink must never hold up
// metric recomputation.
package notify

import "log"

// Notification is one message bound for the user's notification surface.
// Tag deduplicates client-side; RequireInteraction keeps critical alerts on
// screen until dismissed.
type Notification struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Tag                string `json:"tag"`
	RequireInteraction bool   `json:"require_interaction"`
}

// Sink accepts notifications for delivery.
type Sink interface {
	Notify(n Notification)
}

// LogSink writes notifications to the process log. Useful as a default and
// in tests.
type LogSink struct{}

func (LogSink) Notify(n Notification) {
	log.Printf("notify [%s] %s: %s", n.Tag, n.Title, n.Body)
}

// AsyncSink decouples delivery from the caller through a buffered queue.
// When the queue is full the notification is dropped and logged, preserving
// the evaluation path's latency.
type AsyncSink struct {
	inner Sink
	queue chan Notification
	done  chan struct{}
}

// NewAsyncSink wraps inner with a delivery goroutine. A non-positive buffer
// falls back to a small default.
func NewAsyncSink(inner Sink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 16
	}
	s := &AsyncSink{
		inner: inner,
		queue: make(chan Notification, buffer),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for n := range s.queue {
		s.inner.Notify(n)
	}
}

// Notify enqueues without blocking.
func (s *AsyncSink) Notify(n Notification) {
	select {
	case s.queue <- n:
	default:
		log.Printf("dropping notification %q: queue full", n.Tag)
	}
}

// Close drains pending notifications and stops the delivery goroutine.
func (s *AsyncSink) Close() {
	close(s.queue)
	<-s.done
}
