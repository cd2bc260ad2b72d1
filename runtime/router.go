package runtime

import (
	"context"
	"log/slog"
	"time"

	"homechat/contract"
	"homechat/domain/event"
	"homechat/observability"
)

// Router forwards relay events to the recipient's live connection.
// It holds no state of its own: an unreachable recipient is a silent
// drop, because the sender persists the message through the durable
// store independently and the recipient recovers it on the next fetch.
// The router never queues, retries, or acknowledges delivery.
type Router struct {
	log      *slog.Logger
	registry contract.IRegistry
	stats    *observability.RelayStats
	nowFn    func() time.Time
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, stats *observability.RelayStats) *Router {
	return &Router{log: log, registry: registry, stats: stats, nowFn: time.Now}
}

// Route resolves the event's recipient and forwards it verbatim.
// For MessageSend the originating sink always gets a MessageSent echo,
// reachable recipient or not. Typing and read-receipt signals reuse the
// same path and carry no persistence obligation.
func (r *Router) Route(ctx context.Context, origin contract.EventSink, e event.RelayEvent) {
	switch evt := e.(type) {
	case event.MessageSend:
		// One timestamp for both the live copy and the echo, so the two
		// sides of the conversation agree on ordering hints.
		ts := r.nowFn().UTC()
		if sink, ok := r.registry.Lookup(evt.To); ok {
			r.deliver(ctx, sink, event.MessageReceive{MessageSend: evt, Timestamp: ts})
		} else {
			r.stats.EventDropped()
			r.log.Debug("Recipient offline, dropping live copy", "to", evt.To)
		}
		if origin != nil {
			r.deliver(ctx, origin, event.MessageSent{MessageSend: evt, Timestamp: ts})
		}

	case event.TypingStart:
		r.relaySignal(ctx, evt.To, event.TypingIndicator{From: evt.From, IsTyping: true})

	case event.TypingStop:
		r.relaySignal(ctx, evt.To, event.TypingIndicator{From: evt.From, IsTyping: false})

	case event.ReadReceipt:
		r.relaySignal(ctx, evt.To, event.MessageRead{By: evt.From, MessageID: evt.MessageID})

	default:
		r.log.Warn("Unroutable event", "type", e.EventType())
	}
}

func (r *Router) relaySignal(ctx context.Context, to string, e event.RelayEvent) {
	sink, ok := r.registry.Lookup(to)
	if !ok {
		// Signals have no fallback path and no value once the peer is gone.
		return
	}
	r.deliver(ctx, sink, e)
}

func (r *Router) deliver(ctx context.Context, sink contract.EventSink, e event.RelayEvent) {
	if err := sink.Consume(ctx, e); err != nil {
		r.stats.EventDropped()
		r.log.Debug("Delivery failed", "type", e.EventType(), "error", err)
		return
	}
	r.stats.EventRelayed()
}
