package e2e

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"homechat/auth"
	"homechat/client"
	"homechat/observability"
	"homechat/repositories"
	"homechat/runtime"
	"homechat/server"
)

// BaseRelaySuite runs the full relay stack in-process: an in-memory
// message log behind the real HTTP surface, exercised through real
// websocket client sessions.
type BaseRelaySuite struct {
	suite.Suite
	Config Config

	log      *slog.Logger
	db       *badger.DB
	stats    *observability.RelayStats
	registry *runtime.Registry
	messages repositories.MessageRepository
	relay    *httptest.Server
	sessions []*client.Session
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetupTest boots a fresh relay for every test so presence and message
// state never leak between scenarios.
func (s *BaseRelaySuite) SetupTest() {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	s.Require().NoError(err)
	s.db = db

	s.stats = observability.NewRelayStats()
	s.registry = runtime.NewRegistry()
	presence := runtime.NewPresenceTracker(s.log, s.registry)
	router := runtime.NewRouter(s.log, s.registry, s.stats)
	s.messages = repositories.NewMessageRepository(db, s.log, nil)

	srv := server.NewServer(s.log, presence, router, s.messages, s.stats, server.Options{
		ConnectionBufferSize: 16,
		MaxContentLength:     4000,
	})
	s.relay = httptest.NewServer(srv.Routes())
}

func (s *BaseRelaySuite) TearDownTest() {
	for _, session := range s.sessions {
		session.Close()
	}
	s.sessions = nil
	s.relay.Close()
	s.Require().NoError(s.db.Close())
}

// Step prints a colorized header for a scenario step in the test logs
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// NewClient mints a token for the user and connects a session to the
// in-process relay. The session is torn down with the test.
func (s *BaseRelaySuite) NewClient(userID string) *client.Session {
	token, err := auth.GenerateToken(userID, time.Hour)
	s.Require().NoError(err)

	session := client.NewSession(client.Config{
		ServerURL:        s.relay.URL,
		Token:            token,
		UserID:           userID,
		HandshakeRetries: 3,
		HandshakeBackoff: 50 * time.Millisecond,
		TypingTimeout:    s.Config.TypingTimeout,
	}, s.log)

	s.Require().NoError(session.Connect(s.T().Context()))
	s.sessions = append(s.sessions, session)
	return session
}
