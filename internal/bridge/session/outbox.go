package session

import (
	"sync"
)

// outbox is a session's outbound FIFO. The worker is its only producer and
// the stream its only consumer. The channel is never closed; closing the
// outbox releases a blocked producer and any queued events are dropped.
type outbox struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func newOutbox(size int) *outbox {
	return &outbox{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// send queues ev, waiting for room while the outbox is open. It reports
// whether ev was queued.
func (o *outbox) send(ev Event) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.ch <- ev:
		return true
	case <-o.done:
		return false
	}
}

func (o *outbox) close() {
	o.once.Do(func() {
		close(o.done)
	})
}
