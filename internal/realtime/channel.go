package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send after the channel has been closed.
var ErrClosed = errors.New("realtime channel closed")

// Channel is one live conversation with the realtime server. Events are
// delivered in arrival order; the Events channel is closed when the
// conversation ends.
type Channel interface {
	Events() <-chan Event
	Send(ctx context.Context, event any) error
	Close() error
}

// eventBuffer is the in-order delivery side shared by the transports. Emit
// blocks until the consumer takes the event or the buffer is shut down, so
// no event is dropped while the consumer is alive.
type eventBuffer struct {
	events   chan Event
	shutdown chan struct{}
	once     sync.Once

	errMu sync.Mutex
	err   error

	// emitMu keeps emitters from racing close(events).
	emitMu sync.Mutex
	done   bool
}

func newEventBuffer(size int) *eventBuffer {
	return &eventBuffer{
		events:   make(chan Event, size),
		shutdown: make(chan struct{}),
	}
}

func (b *eventBuffer) Events() <-chan Event {
	return b.events
}

// emit delivers e. It returns false once the buffer has been shut down.
func (b *eventBuffer) emit(e Event) bool {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()
	if b.done {
		return false
	}
	select {
	case b.events <- e:
		return true
	case <-b.shutdown:
		return false
	}
}

// finish records err (if any) and closes the event stream. It is safe to
// call more than once.
func (b *eventBuffer) finish(err error) {
	b.setErr(err)
	b.once.Do(func() {
		close(b.shutdown)
		b.emitMu.Lock()
		b.done = true
		close(b.events)
		b.emitMu.Unlock()
	})
}

func (b *eventBuffer) closed() bool {
	select {
	case <-b.shutdown:
		return true
	default:
		return false
	}
}

func (b *eventBuffer) setErr(err error) {
	if err == nil {
		return
	}
	b.errMu.Lock()
	defer b.errMu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

// Err returns the error that ended the conversation, if any.
func (b *eventBuffer) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err
}
