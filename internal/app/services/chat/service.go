// Package chat implements the conversation lifecycle: open-or-create,
// message send, read receipts, per-party soft delete, and typing marks.
// Every operation is a single round-trip write against the document store;
// failures propagate without retries or compensation.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainconv "tradepost/internal/domain/conversation"
	"tradepost/internal/domain/fault"
	domainlisting "tradepost/internal/domain/listing"
)

var ErrNotParticipant = domainconv.ErrNotParticipant

// EventSink receives lifecycle events for downstream consumers (search
// indexing, push notification fan-out). Publish failures are logged, never
// surfaced: the write of record already happened.
type EventSink interface {
	Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error
}

type Service struct {
	Conversations domainconv.Repository
	Listings      domainlisting.Repository
	Events        EventSink
	EventTopic    string
	Logger        *slog.Logger

	// Now is swapped out by tests.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// OpenOrCreate resolves the conversation for (listing, buyer) pairs,
// creating it on first contact. Safe to call repeatedly: identity is
// deterministic, and a lost creation race falls back to the winner's record.
// A buyer who previously hid the conversation gets it back in their inbox.
func (s *Service) OpenOrCreate(ctx context.Context, listingID domainlisting.ID, buyerID string) (*domainconv.Conversation, error) {
	l, err := s.Listings.ByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if buyerID == l.SellerID {
		return nil, domainconv.ErrSelfConversation
	}

	id := domainconv.NewID(string(l.ID), buyerID, l.SellerID)
	existing, err := s.Conversations.Get(ctx, id)
	switch {
	case err == nil:
		role, ok := existing.RoleOf(buyerID)
		if !ok {
			return nil, ErrNotParticipant
		}
		if existing.Party(role).ClearedAt != nil {
			if err := s.Conversations.ApplyReopen(ctx, id, role); err != nil {
				return nil, err
			}
			existing.Party(role).ClearedAt = nil
		}
		return existing, nil
	case fault.Is(err, fault.NotFound):
		// fall through to create
	default:
		return nil, err
	}

	conv, err := domainconv.New(domainconv.CreateParams{
		ListingID: string(l.ID),
		BuyerID:   buyerID,
		SellerID:  l.SellerID,
		Now:       s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Conversations.Create(ctx, conv); err != nil {
		if fault.Is(err, fault.AlreadyExists) {
			// Lost the creation race; the deterministic id makes the
			// winner's record ours too.
			return s.Conversations.Get(ctx, id)
		}
		return nil, err
	}

	s.emit(ctx, domainconv.Event{
		Type:           domainconv.EventConversationCreated,
		ConversationID: string(conv.ID),
		ListingID:      conv.ListingID,
		OccurredAt:     conv.CreatedAt,
	})
	return conv, nil
}

type SendParams struct {
	ConversationID domainconv.ID
	SenderID       string
	Kind           domainconv.Kind
	Text           string
	AttachmentKey  string
}

// Send appends a message and bumps the conversation's counters: total up by
// one, the other party's unread up by one, preview replaced. The sender's
// own unread and soft-delete state are untouched.
func (s *Service) Send(ctx context.Context, params SendParams) (*domainconv.Message, error) {
	conv, err := s.Conversations.Get(ctx, params.ConversationID)
	if err != nil {
		return nil, err
	}
	role, ok := conv.RoleOf(params.SenderID)
	if !ok {
		return nil, ErrNotParticipant
	}

	now := s.now()
	msg, err := domainconv.NewMessage(domainconv.NewMessageParams{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       params.SenderID,
		Kind:           params.Kind,
		Text:           params.Text,
		AttachmentKey:  params.AttachmentKey,
		Now:            now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Conversations.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.Conversations.ApplySend(ctx, conv.ID, role, msg.Preview(), msg.CreatedAt); err != nil {
		return nil, err
	}

	s.emit(ctx, domainconv.Event{
		Type:           domainconv.EventMessageSent,
		ConversationID: string(conv.ID),
		ListingID:      conv.ListingID,
		SenderID:       msg.SenderID,
		MessageID:      msg.ID,
		MessageKind:    string(msg.Kind),
		OccurredAt:     msg.CreatedAt,
	})
	return msg, nil
}

type MarkReadResult struct {
	AlreadyRead bool
	ReadAt      time.Time
}

// MarkRead zeroes the caller's unread counter. Calling it with nothing
// unread is reported as AlreadyRead, not as an error, and writes nothing.
func (s *Service) MarkRead(ctx context.Context, id domainconv.ID, userID string) (MarkReadResult, error) {
	conv, err := s.Conversations.Get(ctx, id)
	if err != nil {
		return MarkReadResult{}, err
	}
	role, ok := conv.RoleOf(userID)
	if !ok {
		return MarkReadResult{}, ErrNotParticipant
	}
	if conv.Party(role).Unread == 0 {
		return MarkReadResult{AlreadyRead: true, ReadAt: conv.Party(role).LastReadAt}, nil
	}

	now := s.now()
	if err := s.Conversations.ApplyRead(ctx, id, role, now); err != nil {
		return MarkReadResult{}, err
	}
	return MarkReadResult{ReadAt: now}, nil
}

// Hide soft-deletes the conversation for the caller only: the current total
// is snapshotted so later messages surface with a fresh count, and the other
// party's view is untouched. A new message makes the conversation visible to
// the caller again.
func (s *Service) Hide(ctx context.Context, id domainconv.ID, userID string) error {
	conv, err := s.Conversations.Get(ctx, id)
	if err != nil {
		return err
	}
	role, ok := conv.RoleOf(userID)
	if !ok {
		return ErrNotParticipant
	}
	return s.Conversations.ApplyHide(ctx, id, role, conv.TotalMessages, s.now())
}

// SetTyping records the caller's typing mark. Staleness is a read-time
// concern; writers just stamp the current time.
func (s *Service) SetTyping(ctx context.Context, id domainconv.ID, userID string, active bool) error {
	conv, err := s.Conversations.Get(ctx, id)
	if err != nil {
		return err
	}
	role, ok := conv.RoleOf(userID)
	if !ok {
		return ErrNotParticipant
	}
	return s.Conversations.SetTyping(ctx, id, role, active, s.now())
}

// InboxEntry is one visible conversation decorated with the caller's view.
type InboxEntry struct {
	Conversation *domainconv.Conversation
	Role         domainconv.Role
	VisibleCount int
	Unread       int
	PeerTyping   bool
}

// Inbox lists the caller's conversations, applying the visibility law: at
// least one message, and no soft delete newer than the latest message.
func (s *Service) Inbox(ctx context.Context, userID string) ([]InboxEntry, error) {
	conversations, err := s.Conversations.InboxFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	entries := make([]InboxEntry, 0, len(conversations))
	for _, conv := range conversations {
		role, ok := conv.RoleOf(userID)
		if !ok {
			continue
		}
		if !conv.VisibleTo(role) {
			continue
		}
		entries = append(entries, InboxEntry{
			Conversation: conv,
			Role:         role,
			VisibleCount: conv.VisibleCount(role),
			Unread:       conv.Party(role).Unread,
			PeerTyping:   conv.TypingFresh(role.Other(), now),
		})
	}
	return entries, nil
}

// Messages returns the newest messages for a participant.
func (s *Service) Messages(ctx context.Context, id domainconv.ID, userID string, limit int) ([]*domainconv.Message, error) {
	conv, err := s.Conversations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := conv.RoleOf(userID); !ok {
		return nil, ErrNotParticipant
	}
	return s.Conversations.Messages(ctx, id, limit)
}

// Conversation loads a single conversation for a participant.
func (s *Service) Conversation(ctx context.Context, id domainconv.ID, userID string) (*domainconv.Conversation, domainconv.Role, error) {
	conv, err := s.Conversations.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	role, ok := conv.RoleOf(userID)
	if !ok {
		return nil, "", ErrNotParticipant
	}
	return conv, role, nil
}

func (s *Service) emit(ctx context.Context, event domainconv.Event) {
	if s.Events == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logWarn("encode chat event failed", err)
		return
	}
	topic := s.EventTopic
	if topic == "" {
		topic = "chat.events"
	}
	headers := map[string]string{"event_type": event.Type}
	if err := s.Events.Publish(ctx, topic, event.ConversationID, payload, headers); err != nil {
		s.logWarn("publish chat event failed", err)
	}
}

func (s *Service) logWarn(msg string, err error) {
	if s.Logger != nil && !errors.Is(err, context.Canceled) {
		s.Logger.Warn(msg, "error", err)
	}
}
