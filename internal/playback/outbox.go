package playback

import "sync"

// outbox delivers collaborator calls one at a time, in the order they were
// pushed. Pushes never block, so they are safe under the controller lock.
type outbox struct {
	mu      sync.Mutex
	pending []notification
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newOutbox() *outbox {
	return &outbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// push queues ns behind everything already pending. It reports false once
// the outbox is closed; the notices are dropped.
func (o *outbox) push(ns ...notification) bool {
	if len(ns) == 0 {
		return true
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.pending = append(o.pending, ns...)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return true
}

// run drains the outbox on the calling goroutine until close.
func (o *outbox) run(deliver func(notification)) {
	defer close(o.done)
	for {
		o.mu.Lock()
		for len(o.pending) == 0 {
			if o.closed {
				o.mu.Unlock()
				return
			}
			o.mu.Unlock()
			<-o.wake
			o.mu.Lock()
		}
		n := o.pending[0]
		o.pending[0] = notification{}
		o.pending = o.pending[1:]
		o.mu.Unlock()

		deliver(n)
	}
}

// close refuses further pushes and waits until everything already queued
// has been delivered.
func (o *outbox) close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		<-o.done
		return
	}
	o.closed = true
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	<-o.done
}
