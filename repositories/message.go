//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"homechat/domain"
)

// IMessageRepository is the durable message log. The relay core never
// calls it; the REST surface and the client sessions do.
type IMessageRepository interface {
	StoreMessage(message domain.StoredMessage) (domain.StoredMessage, error)
	History(userA, userB, listingID string) ([]domain.StoredMessage, error)
	MarkRead(fromUserID, toUserID string) (int, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	nowFn         func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages, nowFn: time.Now}
}

// messageKey builds "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// The listing reference lives in the value, not the key, so a prefix scan
// over one conversation keeps time order across listings.
func messageKey(message domain.StoredMessage) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		domain.ConversationKey(message.From, message.To),
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

func conversationPrefix(userA, userB string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", domain.ConversationKey(userA, userB)))
}

// StoreMessage persists a message and returns the stored copy with its
// assigned id and creation time. The id assigned here is what read
// receipts refer to once the message has been durably recorded.
func (m MessageRepository) StoreMessage(message domain.StoredMessage) (domain.StoredMessage, error) {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = m.nowFn().UTC()
	}
	bytes, err := json.Marshal(message)
	if err != nil {
		return domain.StoredMessage{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
	if err != nil {
		return domain.StoredMessage{}, err
	}
	return message, nil
}

// History returns the conversation between two users ordered by creation
// time, ascending. Thanks to the padded timestamp in the key, a forward
// prefix scan is naturally sorted. When listingID is set, messages about
// other listings are filtered out in the scan. When a message limit is
// configured, only the most recent messages are kept.
func (m MessageRepository) History(userA, userB, listingID string) ([]domain.StoredMessage, error) {
	var messages []domain.StoredMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := conversationPrefix(userA, userB)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var message domain.StoredMessage
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				if listingID != "" && message.ListingID != listingID {
					return nil
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.limitMessages != nil && len(messages) > *m.limitMessages {
		m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
		messages = messages[len(messages)-*m.limitMessages:]
	}
	return messages, nil
}

// MarkRead flips the read flag on every unread message from one user to
// another and returns how many were updated. Rewrites are last-write-wins;
// there is no relay-side locking around read state.
func (m MessageRepository) MarkRead(fromUserID, toUserID string) (int, error) {
	count := 0
	readAt := m.nowFn().UTC()
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := conversationPrefix(fromUserID, toUserID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var message domain.StoredMessage
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			if message.From != fromUserID || message.To != toUserID || message.Read {
				continue
			}
			message.Read = true
			message.ReadAt = &readAt
			bytes, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err := txn.Set(item.KeyCopy(nil), bytes); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
