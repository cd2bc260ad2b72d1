package sink

import (
	"context"
	"sync"

	"homechat/domain/event"
	"homechat/errors"
)

// ConnSink is the buffered inbox between the relay core and one
// websocket write pump. Consume never blocks the relay hot path: a full
// buffer drops the event. Presence and typing are self-healing, and a
// lost MessageReceive is recovered from the durable store on the next
// history fetch.
type ConnSink struct {
	events chan event.RelayEvent
	done   chan struct{}
	once   sync.Once
}

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{
		events: make(chan event.RelayEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by the router and the presence tracker.
// Redirect the event through the concerned owner of the channel;
// the write pump will take it from now.
func (s *ConnSink) Consume(ctx context.Context, e event.RelayEvent) error {
	select {
	case <-s.done:
		return errors.ErrSessionClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Backpressure: drop rather than stall every other connection.
		return errors.ErrSinkFull
	}
}

// Events is drained by the connection's write pump.
func (s *ConnSink) Events() <-chan event.RelayEvent {
	return s.events
}

// Done closes when the connection goes away.
func (s *ConnSink) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent and safe to race with Consume; the channel itself
// is never closed so late deliveries cannot panic.
func (s *ConnSink) Close() {
	s.once.Do(func() { close(s.done) })
}
