// Package runtime owns the relay's shared mutable state and the event
// forwarding path. It contains no transport or storage logic.
package runtime

import (
	"sort"
	"sync"
	"time"

	"homechat/contract"
	"homechat/domain"
)

type session struct {
	entry domain.ConnectionEntry
	sink  contract.EventSink
}

// Registry maps a user identity to its currently active connection.
// Lock scope is limited to single operations; nothing holds the mutex
// across a forward or a broadcast.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]session // current connection per user
	byConn map[string]string  // live connID -> userID
	nowFn  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]session),
		byConn: make(map[string]string),
		nowFn:  time.Now,
	}
}

// Register unconditionally overwrites any existing mapping for userID.
// Replacing an entry is the defined behavior for the "more than one tab"
// case; the superseded connection is not notified. Idempotent, no error.
func (r *Registry) Register(userID, connID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[userID]; ok {
		delete(r.byConn, prev.entry.ConnID)
	}
	r.byUser[userID] = session{
		entry: domain.ConnectionEntry{
			UserID:      userID,
			ConnID:      connID,
			ConnectedAt: r.nowFn().UTC(),
		},
		sink: sink,
	}
	r.byConn[connID] = userID
}

// Unregister removes the entry whose connection matches. A disconnect from
// a superseded connection is a no-op with wasCurrent=false, so a stale
// disconnect can never mark a still-connected user offline.
func (r *Registry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	delete(r.byUser, userID)
	return userID, true
}

// Lookup resolves the live sink for a user. Pure read, called by the
// router on every relay attempt.
func (r *Registry) Lookup(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	return s.sink, true
}

// Online returns the sorted set of user ids with a live connection.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// Sinks snapshots the live sinks keyed by user id, for broadcasts.
func (r *Registry) Sinks() map[string]contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]contract.EventSink, len(r.byUser))
	for userID, s := range r.byUser {
		out[userID] = s.sink
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
