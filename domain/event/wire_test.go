package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"homechat/errors"
)

func TestWire_Client_Frame_RoundTrip(t *testing.T) {
	req := require.New(t)

	// Given a send intent encoded by a client
	data, err := Encode(MessageSend{
		From:        "alice",
		To:          "bob",
		Body:        "is the flat still available?",
		ListingID:   "listing-7",
		ListingName: "Sunny flat",
	})
	req.NoError(err)

	// When the relay decodes the frame
	decoded, err := DecodeClientFrame(data)
	req.NoError(err)

	// Then the event survives intact
	send, ok := decoded.(MessageSend)
	req.True(ok)
	req.Equal("bob", send.To)
	req.Equal("is the flat still available?", send.Body)
	req.Equal("listing-7", send.ListingID)
}

func TestWire_Client_Frame_Rejects_Server_Types(t *testing.T) {
	req := require.New(t)

	// A client must not be able to forge presence or delivery frames
	forged := []RelayEvent{
		PresenceSnapshot{OnlineUserIDs: []string{"alice"}},
		PresenceDelta{UserID: "alice", Online: true},
		MessageSent{Timestamp: time.Now()},
		MessageReceive{Timestamp: time.Now()},
		TypingIndicator{From: "alice", IsTyping: true},
		MessageRead{By: "alice", MessageID: "m-1"},
	}
	for _, e := range forged {
		data, err := Encode(e)
		req.NoError(err)

		_, err = DecodeClientFrame(data)
		// MessageRead shares the wire type with ReadReceipt, so the read
		// receipt is the one legitimate overlap between the two directions.
		if e.EventType() == TypeReadReceipt {
			continue
		}
		req.ErrorIs(err, errors.ErrUnknownEvent, "type %s must not decode client-side", e.EventType())
	}
}

func TestWire_Server_Frame_RoundTrip(t *testing.T) {
	req := require.New(t)
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	data, err := Encode(MessageReceive{
		MessageSend: MessageSend{From: "alice", To: "bob", Body: "hello"},
		Timestamp:   ts,
	})
	req.NoError(err)

	decoded, err := DecodeServerFrame(data)
	req.NoError(err)

	receive, ok := decoded.(MessageReceive)
	req.True(ok)
	req.Equal("alice", receive.From)
	req.Equal(ts, receive.Timestamp)
}

func TestWire_ReadReceipt_Direction_Dependent(t *testing.T) {
	req := require.New(t)

	// The same wire type decodes as a receipt inbound and as a
	// confirmation outbound.
	data, err := Encode(ReadReceipt{From: "bob", To: "alice", MessageID: "m-1"})
	req.NoError(err)

	inbound, err := DecodeClientFrame(data)
	req.NoError(err)
	receipt, ok := inbound.(ReadReceipt)
	req.True(ok)
	req.Equal("bob", receipt.From)

	data, err = Encode(MessageRead{By: "bob", MessageID: "m-1"})
	req.NoError(err)

	outbound, err := DecodeServerFrame(data)
	req.NoError(err)
	read, ok := outbound.(MessageRead)
	req.True(ok)
	req.Equal("bob", read.By)
	req.Equal("m-1", read.MessageID)
}

func TestWire_Unknown_And_Malformed_Frames(t *testing.T) {
	req := require.New(t)

	_, err := DecodeClientFrame([]byte(`{"type":"room:join","payload":{}}`))
	req.ErrorIs(err, errors.ErrUnknownEvent)

	_, err = DecodeServerFrame([]byte(`{"type":"message:receive","payload":"not-an-object"}`))
	req.Error(err)

	_, err = DecodeClientFrame([]byte(`not json at all`))
	req.Error(err)
}
