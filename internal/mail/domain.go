package mail

import (
	"time"

	"github.com/google/uuid"
)

// Message is a private message between two users. Either side can
// delete their copy without affecting the other's.
type Message struct {
	ID            uuid.UUID `json:"id"`
	SenderID      uuid.UUID `json:"senderId"`
	SenderName    string    `json:"senderName"`
	RecipientID   uuid.UUID `json:"recipientId"`
	RecipientName string    `json:"recipientName"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"createdAt"`
}
