package observability

import (
	"sync/atomic"
)

// RelayStats aggregates live counters for the relay process.
// Counters are atomic; the snapshot is a consistent-enough view for
// logging and the debug endpoint, not an accounting source of truth.
type RelayStats struct {
	connectionsJoined uint64
	eventsRelayed     uint64
	eventsDropped     uint64
	messagesPersisted uint64
}

// Snapshot is the frozen view handed to the stats worker and debug server.
type Snapshot struct {
	ConnectionsJoined uint64 `json:"connections_joined"`
	EventsRelayed     uint64 `json:"events_relayed"`
	EventsDropped     uint64 `json:"events_dropped"`
	MessagesPersisted uint64 `json:"messages_persisted"`
}

func NewRelayStats() *RelayStats {
	return &RelayStats{}
}

func (s *RelayStats) ConnectionJoined() {
	atomic.AddUint64(&s.connectionsJoined, 1)
}

func (s *RelayStats) EventRelayed() {
	atomic.AddUint64(&s.eventsRelayed, 1)
}

// EventDropped counts both offline-recipient drops and full-sink drops.
// Dropping is not an error: the durable store is the fallback path.
func (s *RelayStats) EventDropped() {
	atomic.AddUint64(&s.eventsDropped, 1)
}

func (s *RelayStats) MessagePersisted() {
	atomic.AddUint64(&s.messagesPersisted, 1)
}

func (s *RelayStats) GetLatest() Snapshot {
	return Snapshot{
		ConnectionsJoined: atomic.LoadUint64(&s.connectionsJoined),
		EventsRelayed:     atomic.LoadUint64(&s.eventsRelayed),
		EventsDropped:     atomic.LoadUint64(&s.eventsDropped),
		MessagesPersisted: atomic.LoadUint64(&s.messagesPersisted),
	}
}
