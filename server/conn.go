package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"homechat/domain/event"
	"homechat/sink"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 64 << 10
)

// conn is the middleware between one websocket connection and the relay
// core. The read pump decodes frames into relay events; the write pump
// drains the connection's sink. userID stays empty until a Join frame
// has been validated.
type conn struct {
	ws     *websocket.Conn
	sink   *sink.ConnSink
	connID string
	userID string
	log    *slog.Logger
}

type dispatchFunc func(ctx context.Context, c *conn, e event.RelayEvent) error

// readPump delivers inbound frames to the dispatcher until the transport
// drops or the dispatcher rejects the connection. Events on one
// connection are dispatched in arrival order, which is what guarantees
// FIFO delivery per sender-to-recipient pair.
func (c *conn) readPump(ctx context.Context, dispatch dispatchFunc) {
	defer func() { _ = c.ws.Close() }()

	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("Read failed", "conn_id", c.connID, "error", err)
			}
			return
		}

		evt, err := event.DecodeClientFrame(data)
		if err != nil {
			c.log.Warn("Dropping malformed frame", "conn_id", c.connID, "error", err)
			continue
		}
		if err := dispatch(ctx, c, evt); err != nil {
			c.log.Warn("Closing connection", "conn_id", c.connID, "error", err)
			return
		}
	}
}

// writePump owns all writes on the websocket, including pings. Exactly
// one goroutine writes to a gorilla connection.
func (c *conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case e := <-c.sink.Events():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := event.Encode(e)
			if err != nil {
				c.log.Error("Encode failed", "type", e.EventType(), "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.sink.Done():
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ctx.Done():
			return
		}
	}
}
