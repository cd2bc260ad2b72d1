package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"homechat/domain/event"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.RelayEvent) error {
	return nil
}

func TestRegistry_Register_One_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()
	sink := Sink{}

	// Given no user is connected
	req.Empty(registry.Online())
	req.Zero(registry.Count())

	// When a user registers a connection
	registry.Register("alice", connID, sink)

	// Then the user is online and resolvable
	req.Equal([]string{"alice"}, registry.Online())
	req.Equal(1, registry.Count())

	resolved, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(sink, resolved)
}

func TestRegistry_Register_Replaces_Previous_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	firstConn := uuid.NewString()
	secondConn := uuid.NewString()

	// Given a user connected through a first tab
	registry.Register("alice", firstConn, Sink{name: "first"})

	// When the same user connects through a second tab
	registry.Register("alice", secondConn, Sink{name: "second"})

	// Then the user counts once and resolves to the latest sink
	req.Equal(1, registry.Count())
	resolved, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(Sink{name: "second"}, resolved)
}

func TestRegistry_Unregister_Stale_Connection_Is_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	firstConn := uuid.NewString()
	secondConn := uuid.NewString()

	// Given a user whose first connection was superseded by a second
	registry.Register("alice", firstConn, Sink{name: "first"})
	registry.Register("alice", secondConn, Sink{name: "second"})

	// When the superseded connection finally disconnects
	userID, wasCurrent := registry.Unregister(firstConn)

	// Then the stale disconnect is ignored and the user stays online
	req.Empty(userID)
	req.False(wasCurrent)
	req.Equal([]string{"alice"}, registry.Online())

	// And the current connection's disconnect still takes effect
	userID, wasCurrent = registry.Unregister(secondConn)
	req.Equal("alice", userID)
	req.True(wasCurrent)
	req.Empty(registry.Online())
}

func TestRegistry_Unregister_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// When an unknown connection disconnects
	userID, wasCurrent := registry.Unregister(uuid.NewString())

	// Then nothing changes
	req.Empty(userID)
	req.False(wasCurrent)
	req.Zero(registry.Count())
}

func TestRegistry_Online_Is_Sorted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("clara", uuid.NewString(), Sink{})
	registry.Register("alice", uuid.NewString(), Sink{})
	registry.Register("bob", uuid.NewString(), Sink{})

	req.Equal([]string{"alice", "bob", "clara"}, registry.Online())
}

func TestRegistry_Sinks_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("alice", uuid.NewString(), Sink{name: "a"})
	registry.Register("bob", uuid.NewString(), Sink{name: "b"})

	sinks := registry.Sinks()
	req.Len(sinks, 2)
	req.Equal(Sink{name: "a"}, sinks["alice"])
	req.Equal(Sink{name: "b"}, sinks["bob"])
}
