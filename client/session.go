// Package client implements the per-tab session that drives both the
// relay protocol and the durable-store REST calls. One session owns one
// websocket connection and one visible conversation.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"homechat/domain"
	"homechat/domain/event"
	"homechat/errors"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Joined
	ChattingIdle
	ChattingTyping
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	case ChattingIdle:
		return "chatting"
	case ChattingTyping:
		return "typing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config carries the session parameters. Token comes from the identity
// provider; the session never verifies it, the relay does.
type Config struct {
	ServerURL        string
	Token            string
	UserID           string
	HandshakeRetries int
	HandshakeBackoff time.Duration
	TypingTimeout    time.Duration
}

type Session struct {
	cfg    Config
	log    *slog.Logger
	http   *http.Client
	dialer *websocket.Dialer

	// OnEvent, when set before Connect, observes every inbound relay
	// event after the session has merged it. Used by the CLI and tests.
	OnEvent func(e event.RelayEvent)

	writeMu sync.Mutex // gorilla allows a single concurrent writer
	ws      *websocket.Conn

	mu          sync.Mutex
	state       State
	peerID      string
	listingID   string
	listingName string
	messages    []Message
	online      map[string]struct{}
	peerTyping  bool
	typingTimer *time.Timer
}

func NewSession(cfg Config, log *slog.Logger) *Session {
	if cfg.HandshakeBackoff <= 0 {
		cfg.HandshakeBackoff = time.Second
	}
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = time.Second
	}
	return &Session{
		cfg:    cfg,
		log:    log,
		http:   &http.Client{Timeout: 10 * time.Second},
		dialer: websocket.DefaultDialer,
		state:  Disconnected,
		online: make(map[string]struct{}),
	}
}

// Connect performs the transport handshake with bounded retries and
// backoff, then announces the identity with a Join frame. On success the
// session is Joined and the read loop is running. A session that fails
// every attempt stays Disconnected; the UI shows it as offline.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(Connecting)

	var ws *websocket.Conn
	var lastErr error
	backoff := s.cfg.HandshakeBackoff
	for attempt := 0; attempt <= s.cfg.HandshakeRetries; attempt++ {
		ws, _, lastErr = s.dialer.DialContext(ctx, s.wsURL(), nil)
		if lastErr == nil {
			break
		}
		s.log.Warn("Handshake failed", "attempt", attempt+1, "error", lastErr)
		select {
		case <-ctx.Done():
			s.setState(Disconnected)
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr != nil {
		s.setState(Disconnected)
		return fmt.Errorf("%w: %v", errors.ErrHandshakeFailed, lastErr)
	}

	s.ws = ws
	if err := s.emit(event.Join{Token: s.cfg.Token}); err != nil {
		_ = ws.Close()
		s.setState(Disconnected)
		return err
	}
	s.setState(Joined)
	go s.readLoop()
	return nil
}

// Open loads the durable history for a conversation and makes it the
// visible one. Messages already on screen from the peer are marked read
// in the durable store.
func (s *Session) Open(ctx context.Context, peerID, listingID, listingName string) error {
	s.mu.Lock()
	if s.state == Closed || s.state == Disconnected {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	s.peerID = peerID
	s.listingID = listingID
	s.listingName = listingName
	s.mu.Unlock()

	history, err := s.fetchHistory(ctx, peerID, listingID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.messages = lo.Map(history, func(stored domain.StoredMessage, _ int) Message {
		return fromStored(stored)
	})
	s.state = ChattingIdle
	s.mu.Unlock()

	if _, err := s.markRead(ctx, peerID); err != nil {
		s.log.Warn("Mark read failed", "peer", peerID, "error", err)
	}
	return nil
}

// Send performs the dual write: the live relay emit and the durable
// store persist. Both are fire-and-forget from the relay's point of
// view; the view reconciles the echo and the persisted copy against the
// provisional message appended here. The two writes are not ordered
// with respect to each other, so a peer can transiently see the live
// copy before the store has it.
func (s *Session) Send(ctx context.Context, body string) error {
	s.mu.Lock()
	if s.state != ChattingIdle && s.state != ChattingTyping {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	send := event.MessageSend{
		From:        s.cfg.UserID,
		To:          s.peerID,
		Body:        body,
		ListingID:   s.listingID,
		ListingName: s.listingName,
	}
	s.messages = append(s.messages, Message{
		From:        send.From,
		To:          send.To,
		Body:        send.Body,
		ListingID:   send.ListingID,
		ListingName: send.ListingName,
		Timestamp:   time.Now().UTC(),
		Provisional: true,
	})
	s.stopTypingLocked()
	s.mu.Unlock()

	if err := s.emit(send); err != nil {
		return err
	}
	_ = s.emit(event.TypingStop{From: s.cfg.UserID, To: send.To})

	stored, err := s.persist(ctx, send)
	if err != nil {
		// The relay echo is independent and unaffected: the message may
		// look sent live without ever being durably recorded.
		s.markPersistFailed(send)
		return err
	}
	s.markPersisted(send, stored)
	return nil
}

// Typing signals the peer and arms the inactivity countdown: one second
// without further Typing calls auto-emits the stop signal. Flapping
// prevention is entirely this side's job; the relay does no debouncing.
func (s *Session) Typing() {
	s.mu.Lock()
	if s.state != ChattingIdle && s.state != ChattingTyping {
		s.mu.Unlock()
		return
	}
	peerID := s.peerID
	starting := s.state == ChattingIdle
	if starting {
		s.state = ChattingTyping
	}
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.cfg.TypingTimeout, func() {
		s.mu.Lock()
		stopped := s.state == ChattingTyping
		if stopped {
			s.state = ChattingIdle
		}
		s.mu.Unlock()
		if stopped {
			_ = s.emit(event.TypingStop{From: s.cfg.UserID, To: peerID})
		}
	})
	s.mu.Unlock()

	// Emitted on the caller's goroutine so a send that follows cannot
	// put its stop signal on the wire before the start.
	if starting {
		_ = s.emit(event.TypingStart{From: s.cfg.UserID, To: peerID})
	}
}

// Close tears the transport down for good. A closed session never
// reconnects by itself.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = Closed
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	ws := s.ws
	s.mu.Unlock()

	if ws != nil {
		s.writeMu.Lock()
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = ws.Close()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the current conversation view.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

func (s *Session) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) stopTypingLocked() {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	if s.state == ChattingTyping {
		s.state = ChattingIdle
	}
}

func (s *Session) wsURL() string {
	base := s.cfg.ServerURL
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return strings.TrimSuffix(base, "/") + "/ws"
}

func (s *Session) emit(e event.RelayEvent) error {
	data, err := event.Encode(e)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.ws == nil {
		return errors.ErrSessionClosed
	}
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) readLoop() {
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if s.state != Closed {
				// Transport dropped underneath us; stay down until the
				// owner decides to reconnect.
				s.state = Disconnected
			}
			s.mu.Unlock()
			return
		}
		evt, err := event.DecodeServerFrame(data)
		if err != nil {
			s.log.Warn("Dropping malformed frame", "error", err)
			continue
		}
		s.handle(evt)
		if s.OnEvent != nil {
			s.OnEvent(evt)
		}
	}
}

func (s *Session) handle(e event.RelayEvent) {
	switch evt := e.(type) {
	case event.PresenceSnapshot:
		s.mu.Lock()
		s.online = make(map[string]struct{}, len(evt.OnlineUserIDs))
		for _, userID := range evt.OnlineUserIDs {
			s.online[userID] = struct{}{}
		}
		s.mu.Unlock()

	case event.PresenceDelta:
		s.mu.Lock()
		if evt.Online {
			s.online[evt.UserID] = struct{}{}
		} else {
			delete(s.online, evt.UserID)
		}
		s.mu.Unlock()

	case event.MessageReceive:
		s.mergeInbound(evt)

	case event.MessageSent:
		s.reconcileEcho(evt)

	case event.TypingIndicator:
		s.mu.Lock()
		if evt.From == s.peerID {
			s.peerTyping = evt.IsTyping
		}
		s.mu.Unlock()

	case event.MessageRead:
		s.mu.Lock()
		for i := range s.messages {
			m := &s.messages[i]
			if m.From == s.cfg.UserID && (m.ID == evt.MessageID || m.Key() == evt.MessageID) {
				m.Read = true
			}
		}
		s.mu.Unlock()
	}
}

// mergeInbound merges a live message into the view if not already
// present, then acknowledges it when the conversation is on screen.
func (s *Session) mergeInbound(evt event.MessageReceive) {
	incoming := Message{
		From:        evt.From,
		To:          evt.To,
		Body:        evt.Body,
		ListingID:   evt.ListingID,
		ListingName: evt.ListingName,
		Timestamp:   evt.Timestamp,
	}

	s.mu.Lock()
	for _, m := range s.messages {
		if m.Key() == incoming.Key() {
			s.mu.Unlock()
			return
		}
	}
	s.messages = append(s.messages, incoming)
	visible := evt.From == s.peerID &&
		(s.state == ChattingIdle || s.state == ChattingTyping)
	s.mu.Unlock()

	if !visible {
		return
	}
	_ = s.emit(event.ReadReceipt{To: evt.From, MessageID: incoming.Key()})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.markRead(ctx, evt.From); err != nil {
			s.log.Warn("Mark read failed", "peer", evt.From, "error", err)
		}
	}()
}

// reconcileEcho matches the relay's MessageSent confirmation to the
// oldest still-provisional copy of the same message and adopts the
// relay's timestamp so both sides agree on the dedup key.
func (s *Session) reconcileEcho(evt event.MessageSent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		m := &s.messages[i]
		if m.Provisional && m.To == evt.To && m.Body == evt.Body {
			m.Timestamp = evt.Timestamp
			m.Provisional = false
			return
		}
	}
}

func (s *Session) markPersisted(send event.MessageSend, stored domain.StoredMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		m := &s.messages[i]
		if m.To == send.To && m.Body == send.Body && !m.Persisted && !m.PersistFailed {
			m.ID = stored.ID.String()
			m.Persisted = true
			return
		}
	}
}

func (s *Session) markPersistFailed(send event.MessageSend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		m := &s.messages[i]
		if m.To == send.To && m.Body == send.Body && !m.Persisted && !m.PersistFailed {
			m.PersistFailed = true
			return
		}
	}
}
