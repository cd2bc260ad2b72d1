// Package server exposes the relay over the wire: the websocket endpoint
// speaking the relay protocol and the REST surface of the durable store.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"homechat/auth"
	"homechat/contract"
	"homechat/domain/event"
	"homechat/errors"
	"homechat/observability"
	"homechat/repositories"
	"homechat/runtime"
	"homechat/sink"
)

var validate = validator.New()

// Options are the transport knobs, loaded from the environment in main.
type Options struct {
	ConnectionBufferSize int
	MaxContentLength     int
	AllowedOrigins       []string
}

type Server struct {
	log      *slog.Logger
	presence *runtime.PresenceTracker
	router   contract.IRouter
	messages repositories.IMessageRepository
	stats    *observability.RelayStats
	opts     Options
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, presence *runtime.PresenceTracker, router contract.IRouter,
	messages repositories.IMessageRepository, stats *observability.RelayStats, opts Options) *Server {
	s := &Server{
		log:      log,
		presence: presence,
		router:   router,
		messages: messages,
		stats:    stats,
		opts:     opts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originAllowed,
	}
	return s
}

// Routes builds the full HTTP surface: /ws plus the chat REST routes the
// client sessions call alongside the socket.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)
	r.Get("/ws", s.handleWS)
	r.Route("/api/chat", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/messages", s.handleHistory)
		r.Post("/messages", s.handlePersist)
		r.Patch("/read", s.handleMarkRead)
	})
	r.Get("/api/stats", s.handleStats)
	return r
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &conn{
		ws:     ws,
		sink:   sink.NewConnSink(s.opts.ConnectionBufferSize),
		connID: uuid.NewString(),
		log:    s.log,
	}
	s.log.Info("Socket connected", "conn_id", c.connID)

	go c.writePump(r.Context())
	c.readPump(r.Context(), s.dispatch)

	// Transport gone: unregister immediately. No grace period, no
	// reconnect window; a quick reconnect simply re-registers.
	_ = s.dispatch(context.Background(), c, event.Disconnect{ConnID: c.connID})
	c.sink.Close()
	s.log.Info("Socket disconnected", "conn_id", c.connID, "user_id", c.userID)
}

// dispatch is the single entry point for every inbound relay event. A
// returned error terminates the connection; rejected payloads on an
// otherwise healthy connection are dropped with a warning instead.
func (s *Server) dispatch(ctx context.Context, c *conn, e event.RelayEvent) error {
	switch evt := e.(type) {
	case event.Join:
		claims, err := auth.ValidateToken(evt.Token)
		if err != nil {
			return errors.ErrInvalidToken
		}
		c.userID = claims.UserID
		s.presence.HandleJoin(ctx, c.userID, c.connID, c.sink)
		s.stats.ConnectionJoined()

	case event.MessageSend:
		if c.userID == "" {
			return errors.ErrNotJoined
		}
		// The relay trusts the joined identity, never the payload.
		evt.From = c.userID
		if err := s.validateMessageSend(evt); err != nil {
			s.log.Warn("Rejecting message", "conn_id", c.connID, "error", err)
			return nil
		}
		s.router.Route(ctx, c.sink, evt)

	case event.TypingStart:
		if c.userID == "" {
			return errors.ErrNotJoined
		}
		evt.From = c.userID
		s.router.Route(ctx, nil, evt)

	case event.TypingStop:
		if c.userID == "" {
			return errors.ErrNotJoined
		}
		evt.From = c.userID
		s.router.Route(ctx, nil, evt)

	case event.ReadReceipt:
		if c.userID == "" {
			return errors.ErrNotJoined
		}
		evt.From = c.userID
		s.router.Route(ctx, nil, evt)

	case event.Disconnect:
		s.presence.HandleDisconnect(ctx, evt.ConnID)
	}
	return nil
}

func (s *Server) validateMessageSend(evt event.MessageSend) error {
	if err := validate.Struct(evt); err != nil {
		return err
	}
	if s.opts.MaxContentLength > 0 && len(evt.Body) > s.opts.MaxContentLength {
		return errors.ErrBodyTooLong
	}
	return nil
}
