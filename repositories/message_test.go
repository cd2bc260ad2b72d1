package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"homechat/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Store_And_Fetch_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	// Given three messages exchanged over one listing
	bodies := []string{"is it still available?", "yes, come visit", "great, tomorrow at 6?"}
	froms := []string{"alice", "bob", "alice"}
	tos := []string{"bob", "alice", "bob"}
	for i, body := range bodies {
		stored, err := repository.StoreMessage(domain.StoredMessage{
			From:        froms[i],
			To:          tos[i],
			Body:        body,
			ListingID:   "listing-7",
			ListingName: "Sunny flat",
			CreatedAt:   at.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
		req.NotEmpty(stored.ID)
	}

	// When either side fetches the history
	fetched, err := repository.History("alice", "bob", "")
	req.NoError(err)
	mirrored, err := repository.History("bob", "alice", "")
	req.NoError(err)

	// Then both sides see the same conversation in chronological order
	req.Len(fetched, len(bodies))
	req.Equal(fetched, mirrored)
	for i, message := range fetched {
		req.Equal(bodies[i], message.Body)
		req.False(message.Read)
	}
}

func Test_History_Filters_By_Listing(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	listings := []string{"listing-1", "listing-2", "listing-1"}
	for i, listingID := range listings {
		_, err := repository.StoreMessage(domain.StoredMessage{
			From:      "alice",
			To:        "bob",
			Body:      fmt.Sprintf("about %s", listingID),
			ListingID: listingID,
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	// When fetching with a listing filter
	fetched, err := repository.History("alice", "bob", "listing-1")
	req.NoError(err)

	// Then messages about other listings are excluded
	req.Len(fetched, 2)
	for _, message := range fetched {
		req.Equal("listing-1", message.ListingID)
	}
}

func Test_History_Limit_Keeps_Most_Recent(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openTestDB(t), slog.Default(), &limit)
	at := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := repository.StoreMessage(domain.StoredMessage{
			From:      "alice",
			To:        "bob",
			Body:      fmt.Sprintf("msg-%d", i),
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}

	fetched, err := repository.History("alice", "bob", "")
	req.NoError(err)
	req.Len(fetched, limit)
	req.Equal("msg-3", fetched[0].Body)
	req.Equal("msg-4", fetched[1].Body)
}

func Test_MarkRead_Flips_Unread_Messages_One_Way(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	// Given unread messages in both directions
	_, err := repository.StoreMessage(domain.StoredMessage{
		From: "alice", To: "bob", Body: "hello", CreatedAt: at,
	})
	req.NoError(err)
	_, err = repository.StoreMessage(domain.StoredMessage{
		From: "alice", To: "bob", Body: "still there?", CreatedAt: at.Add(time.Second),
	})
	req.NoError(err)
	_, err = repository.StoreMessage(domain.StoredMessage{
		From: "bob", To: "alice", Body: "yes", CreatedAt: at.Add(2 * time.Second),
	})
	req.NoError(err)

	// When Bob marks Alice's messages as read
	count, err := repository.MarkRead("alice", "bob")
	req.NoError(err)
	req.Equal(2, count)

	// Then only that direction is flipped and stamped
	fetched, err := repository.History("alice", "bob", "")
	req.NoError(err)
	req.Len(fetched, 3)
	for _, message := range fetched {
		if message.From == "alice" {
			req.True(message.Read)
			req.NotNil(message.ReadAt)
		} else {
			req.False(message.Read)
			req.Nil(message.ReadAt)
		}
	}

	// And a second pass finds nothing left to update
	count, err = repository.MarkRead("alice", "bob")
	req.NoError(err)
	req.Zero(count)
}
