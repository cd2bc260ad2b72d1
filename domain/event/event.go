// Package event defines the transient relay events exchanged over a live
// connection. Relay events are never persisted: the durable message log is
// fed separately through the REST surface by the sending client.
package event

import "time"

// Type is the wire name of an event, carried in the frame envelope.
type Type string

const (
	TypeJoin             Type = "user:join"
	TypePresenceSnapshot Type = "users:online"
	TypePresenceDelta    Type = "user:presence"
	TypeMessageSend      Type = "message:send"
	TypeMessageSent      Type = "message:sent"
	TypeMessageReceive   Type = "message:receive"
	TypeTypingStart      Type = "typing:start"
	TypeTypingStop       Type = "typing:stop"
	TypeTypingIndicator  Type = "typing:indicator"
	TypeReadReceipt      Type = "message:read"
	TypeDisconnect       Type = "disconnect"
)

// RelayEvent is the tagged union dispatched through the router.
type RelayEvent interface {
	EventType() Type
}

// Join announces the identity of a freshly connected client.
// The relay validates the token and never trusts a raw user id.
type Join struct {
	Token string `json:"token"`
}

func (Join) EventType() Type { return TypeJoin }

// MessageSend is the client's intent to deliver a message to a peer.
// From is stamped by the relay with the connection's joined identity.
type MessageSend struct {
	From        string `json:"from"`
	To          string `json:"to" validate:"required"`
	Body        string `json:"message" validate:"required"`
	ListingID   string `json:"listingId,omitempty"`
	ListingName string `json:"listingName,omitempty"`
}

func (MessageSend) EventType() Type { return TypeMessageSend }

// MessageSent is the unconditional echo back to the sender. It is emitted
// whether or not the recipient was reachable, so the sender's UI can render
// optimistically without waiting on persistence.
type MessageSent struct {
	MessageSend
	Timestamp time.Time `json:"timestamp"`
}

func (MessageSent) EventType() Type { return TypeMessageSent }

// MessageReceive is the live copy forwarded to a reachable recipient.
type MessageReceive struct {
	MessageSend
	Timestamp time.Time `json:"timestamp"`
}

func (MessageReceive) EventType() Type { return TypeMessageReceive }

type TypingStart struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (TypingStart) EventType() Type { return TypeTypingStart }

type TypingStop struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (TypingStop) EventType() Type { return TypeTypingStop }

// TypingIndicator folds start/stop into a single peer-facing signal.
type TypingIndicator struct {
	From     string `json:"from"`
	IsTyping bool   `json:"isTyping"`
}

func (TypingIndicator) EventType() Type { return TypeTypingIndicator }

// ReadReceipt reports that the reader displayed a message. From is the
// reader (stamped by the relay from the connection identity), To the
// original sender the receipt is routed back to.
type ReadReceipt struct {
	From      string `json:"from"`
	To        string `json:"to"`
	MessageID string `json:"messageId"`
}

func (ReadReceipt) EventType() Type { return TypeReadReceipt }

// MessageRead is the receipt as seen by the original sender.
type MessageRead struct {
	By        string `json:"by"`
	MessageID string `json:"messageId"`
}

func (MessageRead) EventType() Type { return TypeReadReceipt }

// PresenceSnapshot carries the full online set, sent to a joiner only.
type PresenceSnapshot struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
}

func (PresenceSnapshot) EventType() Type { return TypePresenceSnapshot }

// PresenceDelta is the incremental presence change broadcast to everyone
// already connected.
type PresenceDelta struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

func (PresenceDelta) EventType() Type { return TypePresenceDelta }

// Disconnect is synthesized by the transport when a connection drops; it
// never travels on the wire.
type Disconnect struct {
	ConnID string `json:"-"`
}

func (Disconnect) EventType() Type { return TypeDisconnect }
