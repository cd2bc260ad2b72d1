// Package domain contains core concepts of the messaging relay.
// This file defines connection identity entries and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// ConnectionEntry binds a user identity to its single live transport
// connection. At most one entry exists per user at any instant: a second
// join for the same user replaces the previous one (last-connection-wins).
type ConnectionEntry struct {
	UserID      string
	ConnID      string
	ConnectedAt time.Time
}
