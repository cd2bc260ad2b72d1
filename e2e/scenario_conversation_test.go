package e2e

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"homechat/client"
	"homechat/observability"
)

type testConversationSuite struct {
	BaseRelaySuite
}

func TestConversationSuite(t *testing.T) {
	suite.Run(t, &testConversationSuite{})
}

const tick = 20 * time.Millisecond

func (s *testConversationSuite) find(session *client.Session, body string) (client.Message, bool) {
	for _, m := range session.Messages() {
		if m.Body == body {
			return m, true
		}
	}
	return client.Message{}, false
}

func (s *testConversationSuite) TestFullConversationFlow() {
	ctx := s.T().Context()

	// --- STEP 1: PRESENCE ---
	s.Step("Step 1: Two users join and see each other online")
	alice := s.NewClient("alice")
	bob := s.NewClient("bob")

	// Bob joined second, so his snapshot already contains Alice; Alice
	// learns about Bob through the broadcast delta.
	s.Eventually(func() bool { return bob.IsOnline("alice") },
		s.Config.StepTimeout, tick, "Bob never saw Alice in his presence snapshot")
	s.Eventually(func() bool { return alice.IsOnline("bob") },
		s.Config.StepTimeout, tick, "Alice never received Bob's online delta")

	s.Require().NoError(alice.Open(ctx, "bob", "listing-7", "Sunny flat"))
	s.Require().NoError(bob.Open(ctx, "alice", "listing-7", "Sunny flat"))

	// --- STEP 2: LIVE DELIVERY, ECHO AND READ RECEIPT ---
	s.Step("Step 2: Message is delivered live, echoed and acknowledged")
	s.Require().NoError(alice.Send(ctx, "hello"))

	s.Eventually(func() bool {
		_, ok := s.find(bob, "hello")
		return ok
	}, s.Config.StepTimeout, tick, "Bob never received the live message")

	// Bob had the conversation on screen, so his receipt must flow back
	// and flip the read flag on Alice's copy.
	s.Eventually(func() bool {
		m, ok := s.find(alice, "hello")
		return ok && m.Read && m.Persisted && !m.Provisional
	}, s.Config.StepTimeout, tick, "Alice's copy was never confirmed and read")

	// --- STEP 3: TYPING INDICATOR WITH AUTO-STOP ---
	s.Step("Step 3: Typing indicator appears, then times out on its own")
	bob.Typing()
	s.Eventually(func() bool { return alice.PeerTyping() },
		s.Config.StepTimeout, tick, "Alice never saw Bob typing")
	// No further keystrokes: the client must emit the stop itself.
	s.Eventually(func() bool { return !alice.PeerTyping() },
		s.Config.StepTimeout, tick, "Typing indicator never cleared after inactivity")

	// --- STEP 4: OFFLINE RECIPIENT ---
	s.Step("Step 4: Peer disconnects, live copy drops but the store keeps it")
	// Bob's mark-read call to the store is asynchronous; let it land in
	// the durable log before taking him offline.
	s.Eventually(func() bool {
		stored, err := s.messages.History("alice", "bob", "")
		return err == nil && len(stored) == 1 && stored[0].Read
	}, s.Config.StepTimeout, tick, "Durable copy was never marked read")
	bob.Close()
	s.Eventually(func() bool { return !alice.IsOnline("bob") },
		s.Config.StepTimeout, tick, "Alice never received Bob's offline delta")

	s.Require().NoError(alice.Send(ctx, "are you there?"))
	s.Eventually(func() bool {
		m, ok := s.find(alice, "are you there?")
		return ok && m.Persisted
	}, s.Config.StepTimeout, tick, "Offline message was never persisted")

	// --- STEP 5: RECONNECT AND CATCH UP FROM HISTORY ---
	s.Step("Step 5: Peer reconnects and loads the full conversation")
	bobAgain := s.NewClient("bob")
	s.Require().NoError(bobAgain.Open(ctx, "alice", "", ""))

	messages := bobAgain.Messages()
	s.Require().Len(messages, 2)
	s.Require().Equal("hello", messages[0].Body)
	s.Require().Equal("are you there?", messages[1].Body)
	s.Require().True(messages[0].Read, "First message was read live before the disconnect")
}

func (s *testConversationSuite) TestLastConnectionWins() {
	ctx := s.T().Context()

	observer := s.NewClient("alice")
	first := s.NewClient("bob")
	second := s.NewClient("bob")

	s.Eventually(func() bool { return observer.IsOnline("bob") },
		s.Config.StepTimeout, tick, "Observer never saw Bob online")

	// Closing the superseded connection must not take Bob offline; only
	// the current connection's disconnect counts.
	first.Close()
	time.Sleep(5 * tick)
	s.Require().True(observer.IsOnline("bob"), "Stale disconnect took a connected user offline")

	// Messages go to the surviving connection.
	s.Require().NoError(observer.Open(ctx, "bob", "", ""))
	s.Require().NoError(second.Open(ctx, "alice", "", ""))
	s.Require().NoError(observer.Send(ctx, "still there?"))
	s.Eventually(func() bool {
		_, ok := s.find(second, "still there?")
		return ok
	}, s.Config.StepTimeout, tick, "Surviving connection never received the message")

	second.Close()
	s.Eventually(func() bool { return !observer.IsOnline("bob") },
		s.Config.StepTimeout, tick, "Current disconnect never took Bob offline")
}

func (s *testConversationSuite) TestStatsEndpoint() {
	ctx := s.T().Context()

	alice := s.NewClient("alice")
	bob := s.NewClient("bob")
	s.Eventually(func() bool { return alice.IsOnline("bob") },
		s.Config.StepTimeout, tick, "Alice never saw Bob online")

	s.Require().NoError(alice.Open(ctx, "bob", "", ""))
	s.Require().NoError(bob.Open(ctx, "alice", "", ""))
	s.Require().NoError(alice.Send(ctx, "ping"))

	s.Eventually(func() bool {
		resp, err := http.Get(s.relay.URL + "/api/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var snapshot observability.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
			return false
		}
		return snapshot.ConnectionsJoined >= 2 &&
			snapshot.EventsRelayed >= 1 &&
			snapshot.MessagesPersisted >= 1
	}, s.Config.StepTimeout, tick, "Stats endpoint never reflected the traffic")
}
