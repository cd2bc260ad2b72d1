package event

import (
	"encoding/json"
	"fmt"

	"homechat/errors"
)

// Envelope is the single frame shape carried over the websocket:
// a wire type tag plus the variant payload.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps a relay event into its wire frame.
func Encode(e RelayEvent) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.EventType(), err)
	}
	return json.Marshal(Envelope{Type: e.EventType(), Payload: payload})
}

// DecodeClientFrame parses a frame sent by a client to the relay.
// Server-to-client types are rejected here so a client cannot forge
// presence or delivery confirmations.
func DecodeClientFrame(data []byte) (RelayEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch env.Type {
	case TypeJoin:
		return unmarshalPayload[Join](env)
	case TypeMessageSend:
		return unmarshalPayload[MessageSend](env)
	case TypeTypingStart:
		return unmarshalPayload[TypingStart](env)
	case TypeTypingStop:
		return unmarshalPayload[TypingStop](env)
	case TypeReadReceipt:
		return unmarshalPayload[ReadReceipt](env)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Type)
	}
}

// DecodeServerFrame parses a frame sent by the relay to a client.
func DecodeServerFrame(data []byte) (RelayEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch env.Type {
	case TypePresenceSnapshot:
		return unmarshalPayload[PresenceSnapshot](env)
	case TypePresenceDelta:
		return unmarshalPayload[PresenceDelta](env)
	case TypeMessageSent:
		return unmarshalPayload[MessageSent](env)
	case TypeMessageReceive:
		return unmarshalPayload[MessageReceive](env)
	case TypeTypingIndicator:
		return unmarshalPayload[TypingIndicator](env)
	case TypeReadReceipt:
		return unmarshalPayload[MessageRead](env)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Type)
	}
}

func unmarshalPayload[E RelayEvent](env Envelope) (RelayEvent, error) {
	var e E
	if err := json.Unmarshal(env.Payload, &e); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return e, nil
}
