package conversation

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrTextRequired       = errors.New("conversation: message text is required")
	ErrAttachmentRequired = errors.New("conversation: attachment key is required")
	ErrKindUnknown        = errors.New("conversation: unknown message kind")
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// PreviewLabelImage replaces the body of non-text messages in inbox previews.
const PreviewLabelImage = "[photo]"

// Message is a single entry in a conversation's append-only log.
type Message struct {
	ID             string
	ConversationID ID
	SenderID       string
	Kind           Kind
	Text           string
	AttachmentKey  string
	CreatedAt      time.Time
}

type NewMessageParams struct {
	ID             string
	ConversationID ID
	SenderID       string
	Kind           Kind
	Text           string
	AttachmentKey  string
	Now            time.Time
}

func NewMessage(params NewMessageParams) (*Message, error) {
	text := strings.TrimSpace(params.Text)
	switch params.Kind {
	case KindText:
		if text == "" {
			return nil, ErrTextRequired
		}
	case KindImage:
		if strings.TrimSpace(params.AttachmentKey) == "" {
			return nil, ErrAttachmentRequired
		}
	default:
		return nil, ErrKindUnknown
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Message{
		ID:             params.ID,
		ConversationID: params.ConversationID,
		SenderID:       params.SenderID,
		Kind:           params.Kind,
		Text:           text,
		AttachmentKey:  strings.TrimSpace(params.AttachmentKey),
		CreatedAt:      now.UTC(),
	}, nil
}

// Preview builds the last-message snapshot for this message.
func (m *Message) Preview() MessagePreview {
	text := m.Text
	if m.Kind != KindText {
		text = PreviewLabelImage
	}
	return MessagePreview{
		Text:     text,
		SenderID: m.SenderID,
		Kind:     m.Kind,
		SentAt:   m.CreatedAt,
	}
}
