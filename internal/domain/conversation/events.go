package conversation

import "time"

const (
	EventConversationCreated = "conversation.created"
	EventMessageSent         = "message.sent"
)

// Event is the broker payload emitted after a successful lifecycle write.
type Event struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	ListingID      string    `json:"listing_id"`
	SenderID       string    `json:"sender_id,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	MessageKind    string    `json:"message_kind,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
