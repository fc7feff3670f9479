package dto

import (
	"time"

	"tradepost/internal/app/services/chat"
	domainconv "tradepost/internal/domain/conversation"
)

// Conversation is the inbox view of a thread: the caller's role, counters,
// preview, and the peer's typing indicator already resolved for them.
type Conversation struct {
	ID            string          `json:"id"`
	ListingID     string          `json:"listing_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id"`
	Role          string          `json:"role,omitempty"`
	Status        string          `json:"status"`
	VisibleCount  int             `json:"visible_count"`
	Unread        int             `json:"unread"`
	PeerTyping    bool            `json:"peer_typing,omitempty"`
	LastMessage   *MessagePreview `json:"last_message,omitempty"`
	LastMessageAt time.Time       `json:"last_message_at,omitzero"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MessagePreview is the denormalized last-message snapshot.
type MessagePreview struct {
	Text     string    `json:"text"`
	SenderID string    `json:"sender_id"`
	Kind     string    `json:"kind"`
	SentAt   time.Time `json:"sent_at"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Kind           string    `json:"kind"`
	Text           string    `json:"text,omitempty"`
	AttachmentKey  string    `json:"attachment_key,omitempty"`
	AttachmentURL  string    `json:"attachment_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChatMessageList struct {
	Items []ChatMessage `json:"items"`
}

// ReadReceipt reports the outcome of a mark-read call. AlreadyRead signals
// that nothing was unread and no counters moved.
type ReadReceipt struct {
	AlreadyRead bool      `json:"already_read"`
	ReadAt      time.Time `json:"read_at,omitzero"`
}

// Attachment is the handle returned after an upload; the key goes into the
// follow-up send call.
type Attachment struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

func MapConversation(conv *domainconv.Conversation, role domainconv.Role) Conversation {
	if conv == nil {
		return Conversation{}
	}
	out := Conversation{
		ID:            string(conv.ID),
		ListingID:     conv.ListingID,
		BuyerID:       conv.BuyerID,
		SellerID:      conv.SellerID,
		Role:          string(role),
		Status:        string(conv.Status),
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
	}
	if role != "" {
		out.VisibleCount = conv.VisibleCount(role)
		out.Unread = conv.Party(role).Unread
	} else {
		out.VisibleCount = conv.TotalMessages
	}
	if conv.TotalMessages > 0 {
		out.LastMessage = &MessagePreview{
			Text:     conv.LastMessage.Text,
			SenderID: conv.LastMessage.SenderID,
			Kind:     string(conv.LastMessage.Kind),
			SentAt:   conv.LastMessage.SentAt,
		}
	}
	return out
}

func MapInboxEntry(entry chat.InboxEntry) Conversation {
	out := MapConversation(entry.Conversation, entry.Role)
	out.VisibleCount = entry.VisibleCount
	out.Unread = entry.Unread
	out.PeerTyping = entry.PeerTyping
	return out
}

func MapChatMessage(msg *domainconv.Message) ChatMessage {
	if msg == nil {
		return ChatMessage{}
	}
	return ChatMessage{
		ID:             msg.ID,
		ConversationID: string(msg.ConversationID),
		SenderID:       msg.SenderID,
		Kind:           string(msg.Kind),
		Text:           msg.Text,
		AttachmentKey:  msg.AttachmentKey,
		CreatedAt:      msg.CreatedAt,
	}
}
