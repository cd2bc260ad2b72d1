// Durable messages and conversation keys. Stored messages are immutable
// except for their read flag.

package domain

import (
	"time"

	"github.com/google/uuid"
)

// StoredMessage is a chat message as recorded in the durable log.
// The relay never writes these itself; the REST surface does.
type StoredMessage struct {
	ID          uuid.UUID  `json:"id"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Body        string     `json:"message"`
	ListingID   string     `json:"listingId,omitempty"`
	ListingName string     `json:"listingName,omitempty"`
	Read        bool       `json:"read"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ConversationKey identifies the message stream between two users,
// independent of who sent first. Both directions share one key.
func ConversationKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}
