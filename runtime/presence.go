package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"homechat/contract"
	"homechat/domain/event"
)

// PresenceTracker derives and broadcasts the online set from registry
// mutations. Presence is best-effort: no acknowledgment, no retry. A
// stale view self-heals on the next mutation.
type PresenceTracker struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewPresenceTracker(log *slog.Logger, registry contract.IRegistry) *PresenceTracker {
	return &PresenceTracker{log: log, registry: registry}
}

// HandleJoin registers the connection, then sends the full snapshot to
// the joiner and an incremental delta to everyone else. The joiner gets
// the snapshot so a fresh tab can render the online list in one frame;
// deltas bound the bandwidth for everybody already connected.
func (p *PresenceTracker) HandleJoin(ctx context.Context, userID, connID string, sink contract.EventSink) {
	p.registry.Register(userID, connID, sink)
	p.log.Info(fmt.Sprintf("User %s joined, %d online", userID, p.registry.Count()))

	snapshot := event.PresenceSnapshot{OnlineUserIDs: p.registry.Online()}
	if err := sink.Consume(ctx, snapshot); err != nil {
		p.log.Debug("Presence snapshot lost", "user_id", userID, "error", err)
	}
	p.broadcast(ctx, event.PresenceDelta{UserID: userID, Online: true}, userID)
}

// HandleDisconnect unregisters the connection and broadcasts the offline
// delta, but only if the removed entry was still the current mapping for
// that user. There is no grace period: a quick reconnect shows up as an
// online->offline->online flicker, an accepted trade-off.
func (p *PresenceTracker) HandleDisconnect(ctx context.Context, connID string) {
	userID, wasCurrent := p.registry.Unregister(connID)
	if !wasCurrent {
		return
	}
	p.log.Info(fmt.Sprintf("User %s disconnected, %d online", userID, p.registry.Count()))
	p.broadcast(ctx, event.PresenceDelta{UserID: userID, Online: false}, "")
}

func (p *PresenceTracker) broadcast(ctx context.Context, e event.RelayEvent, excludeUserID string) {
	for userID, sink := range p.registry.Sinks() {
		if userID == excludeUserID {
			continue
		}
		if err := sink.Consume(ctx, e); err != nil {
			p.log.Debug("Presence delta lost", "user_id", userID, "error", err)
		}
	}
}
