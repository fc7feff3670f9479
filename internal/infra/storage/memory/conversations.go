package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainconv "tradepost/internal/domain/conversation"
	"tradepost/internal/domain/fault"
)

// ConversationRepository is an in-memory implementation backing tests and the
// no-database dev mode. Mutations mirror the document store's field-path
// semantics: each Apply touches only the fields it names.
type ConversationRepository struct {
	mu       sync.RWMutex
	items    map[domainconv.ID]*domainconv.Conversation
	messages map[domainconv.ID][]*domainconv.Message
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		items:    make(map[domainconv.ID]*domainconv.Conversation),
		messages: make(map[domainconv.ID][]*domainconv.Message),
	}
}

func (r *ConversationRepository) Get(ctx context.Context, id domainconv.ID) (*domainconv.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.items[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "conversation not found")
	}
	copied := *conv
	return &copied, nil
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domainconv.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[conv.ID]; exists {
		return fault.New(fault.AlreadyExists, "conversation already exists")
	}
	copied := *conv
	r.items[conv.ID] = &copied
	return nil
}

func (r *ConversationRepository) InboxFor(ctx context.Context, userID string) ([]*domainconv.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainconv.Conversation
	for _, conv := range r.items {
		if conv.BuyerID == userID || conv.SellerID == userID {
			copied := *conv
			out = append(out, &copied)
		}
	}
	sortByLastMessage(out)
	return out, nil
}

func (r *ConversationRepository) ListAll(ctx context.Context, limit int) ([]*domainconv.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainconv.Conversation, 0, len(r.items))
	for _, conv := range r.items {
		copied := *conv
		out = append(out, &copied)
	}
	sortByLastMessage(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ConversationRepository) ApplySend(ctx context.Context, id domainconv.ID, sender domainconv.Role, preview domainconv.MessagePreview, at time.Time) error {
	return r.mutate(id, func(conv *domainconv.Conversation) {
		conv.TotalMessages++
		conv.Party(sender.Other()).Unread++
		conv.LastMessageAt = at
		conv.LastMessage = preview
	})
}

func (r *ConversationRepository) ApplyRead(ctx context.Context, id domainconv.ID, role domainconv.Role, at time.Time) error {
	return r.mutate(id, func(conv *domainconv.Conversation) {
		party := conv.Party(role)
		party.Unread = 0
		party.LastReadAt = at
	})
}

func (r *ConversationRepository) ApplyHide(ctx context.Context, id domainconv.ID, role domainconv.Role, totalAtHide int, at time.Time) error {
	return r.mutate(id, func(conv *domainconv.Conversation) {
		party := conv.Party(role)
		cleared := at
		party.ClearedAt = &cleared
		party.ClearedCount = totalAtHide
		party.Unread = 0
		party.LastReadAt = at
	})
}

func (r *ConversationRepository) ApplyReopen(ctx context.Context, id domainconv.ID, role domainconv.Role) error {
	return r.mutate(id, func(conv *domainconv.Conversation) {
		conv.Party(role).ClearedAt = nil
	})
}

func (r *ConversationRepository) SetTyping(ctx context.Context, id domainconv.ID, role domainconv.Role, active bool, at time.Time) error {
	return r.mutate(id, func(conv *domainconv.Conversation) {
		mark := domainconv.TypingMark{Active: active, UpdatedAt: at}
		if role == domainconv.RoleBuyer {
			conv.Typing.Buyer = mark
		} else {
			conv.Typing.Seller = mark
		}
	})
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *domainconv.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *msg
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], &copied)
	return nil
}

func (r *ConversationRepository) Messages(ctx context.Context, id domainconv.ID, limit int) ([]*domainconv.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	log := r.messages[id]
	out := make([]*domainconv.Message, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		copied := *log[i]
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *ConversationRepository) mutate(id domainconv.ID, apply func(*domainconv.Conversation)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[id]
	if !ok {
		return fault.New(fault.NotFound, "conversation not found")
	}
	apply(conv)
	return nil
}

func sortByLastMessage(items []*domainconv.Conversation) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastMessageAt.After(items[j].LastMessageAt)
	})
}

var _ domainconv.Repository = (*ConversationRepository)(nil)
