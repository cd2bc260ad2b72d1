package client

import (
	"time"

	"homechat/domain"
)

// Message is one entry of the in-memory conversation view. It merges
// three sources: the durable history fetched on open, the provisional
// copy rendered on send, and live relay events.
type Message struct {
	ID          string
	From        string
	To          string
	Body        string
	ListingID   string
	ListingName string
	Timestamp   time.Time
	Read        bool

	// Provisional marks a sent message still waiting for its relay echo.
	Provisional bool
	// Persisted reports the durable-store write succeeded.
	Persisted bool
	// PersistFailed means the message may have been seen live by the
	// peer but was never durably recorded.
	PersistFailed bool
}

// Key is the dedup identity for live events: no server-assigned id is
// guaranteed to exist at relay time, so sender, timestamp and body
// together identify a message.
func (m Message) Key() string {
	return m.From + "|" + m.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + m.Body
}

func fromStored(stored domain.StoredMessage) Message {
	return Message{
		ID:          stored.ID.String(),
		From:        stored.From,
		To:          stored.To,
		Body:        stored.Body,
		ListingID:   stored.ListingID,
		ListingName: stored.ListingName,
		Timestamp:   stored.CreatedAt,
		Read:        stored.Read,
		Persisted:   true,
	}
}
