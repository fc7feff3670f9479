package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainconv "tradepost/internal/domain/conversation"
)

// ConversationRepository stores conversation records and their message log.
// Every mutation is a single field-path update ($set/$inc on named paths),
// so concurrent writers of disjoint fields never clobber each other; the
// driver's per-document atomicity is the only coordination used.
type ConversationRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("conversation_messages"),
	}
}

func (r *ConversationRepository) Get(ctx context.Context, id domainconv.ID) (*domainconv.Conversation, error) {
	var doc conversationDocument
	if err := r.conversations.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return nil, mapStoreError(err)
	}
	return doc.toDomain(), nil
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domainconv.Conversation) error {
	if _, err := r.conversations.InsertOne(ctx, newConversationDocument(conv)); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *ConversationRepository) InboxFor(ctx context.Context, userID string) ([]*domainconv.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"buyer_id": userID},
		bson.M{"seller_id": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	return r.find(ctx, filter, opts)
}

func (r *ConversationRepository) ListAll(ctx context.Context, limit int) ([]*domainconv.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

func (r *ConversationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainconv.Conversation, error) {
	cursor, err := r.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer cursor.Close(ctx)

	var out []*domainconv.Conversation
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, mapStoreError(err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, mapStoreError(err)
	}
	return out, nil
}

func (r *ConversationRepository) ApplySend(ctx context.Context, id domainconv.ID, sender domainconv.Role, preview domainconv.MessagePreview, at time.Time) error {
	update := bson.M{
		"$inc": bson.M{
			"total_messages":                      1,
			partyPath(sender.Other()) + ".unread": 1,
		},
		"$set": bson.M{
			"last_message_at": at.UnixMilli(),
			"last_message":    newPreviewDocument(preview),
		},
	}
	return r.update(ctx, id, update)
}

func (r *ConversationRepository) ApplyRead(ctx context.Context, id domainconv.ID, role domainconv.Role, at time.Time) error {
	p := partyPath(role)
	return r.update(ctx, id, bson.M{"$set": bson.M{
		p + ".unread":       0,
		p + ".last_read_at": at.UnixMilli(),
	}})
}

func (r *ConversationRepository) ApplyHide(ctx context.Context, id domainconv.ID, role domainconv.Role, totalAtHide int, at time.Time) error {
	p := partyPath(role)
	return r.update(ctx, id, bson.M{"$set": bson.M{
		p + ".cleared_at":    at.UnixMilli(),
		p + ".cleared_count": totalAtHide,
		p + ".unread":        0,
		p + ".last_read_at":  at.UnixMilli(),
	}})
}

func (r *ConversationRepository) ApplyReopen(ctx context.Context, id domainconv.ID, role domainconv.Role) error {
	p := partyPath(role)
	return r.update(ctx, id, bson.M{"$set": bson.M{
		p + ".cleared_at": nil,
	}})
}

func (r *ConversationRepository) SetTyping(ctx context.Context, id domainconv.ID, role domainconv.Role, active bool, at time.Time) error {
	p := "typing." + partyPath(role)
	return r.update(ctx, id, bson.M{"$set": bson.M{
		p + ".active":     active,
		p + ".updated_at": at.UnixMilli(),
	}})
}

func (r *ConversationRepository) update(ctx context.Context, id domainconv.ID, update bson.M) error {
	res, err := r.conversations.UpdateOne(ctx, bson.M{"_id": string(id)}, update)
	if err != nil {
		return mapStoreError(err)
	}
	if res.MatchedCount == 0 {
		return errConversationMissing
	}
	return nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *domainconv.Message) error {
	if _, err := r.messages.InsertOne(ctx, newMessageDocument(msg)); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (r *ConversationRepository) Messages(ctx context.Context, id domainconv.ID, limit int) ([]*domainconv.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": string(id)}, opts)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer cursor.Close(ctx)

	var out []*domainconv.Message
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, mapStoreError(err)
		}
		out = append(out, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, mapStoreError(err)
	}
	return out, nil
}

func partyPath(role domainconv.Role) string {
	if role == domainconv.RoleBuyer {
		return "buyer"
	}
	return "seller"
}

type conversationDocument struct {
	ID            string          `bson:"_id"`
	ListingID     string          `bson:"listing_id"`
	BuyerID       string          `bson:"buyer_id"`
	SellerID      string          `bson:"seller_id"`
	Status        string          `bson:"status"`
	TotalMessages int             `bson:"total_messages"`
	LastMessageAt int64           `bson:"last_message_at"`
	LastMessage   previewDocument `bson:"last_message"`
	Buyer         partyDocument   `bson:"buyer"`
	Seller        partyDocument   `bson:"seller"`
	Typing        typingDocument  `bson:"typing"`
	CreatedAt     int64           `bson:"created_at"`
}

type partyDocument struct {
	Unread       int    `bson:"unread"`
	LastReadAt   int64  `bson:"last_read_at"`
	ClearedAt    *int64 `bson:"cleared_at"`
	ClearedCount int    `bson:"cleared_count"`
}

type typingDocument struct {
	Buyer  typingMarkDocument `bson:"buyer"`
	Seller typingMarkDocument `bson:"seller"`
}

type typingMarkDocument struct {
	Active    bool  `bson:"active"`
	UpdatedAt int64 `bson:"updated_at"`
}

type previewDocument struct {
	Text     string `bson:"text"`
	SenderID string `bson:"sender_id"`
	Kind     string `bson:"kind"`
	SentAt   int64  `bson:"sent_at"`
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	SenderID       string `bson:"sender_id"`
	Kind           string `bson:"kind"`
	Text           string `bson:"text,omitempty"`
	AttachmentKey  string `bson:"attachment_key,omitempty"`
	CreatedAt      int64  `bson:"created_at"`
}

func newConversationDocument(c *domainconv.Conversation) conversationDocument {
	return conversationDocument{
		ID:            string(c.ID),
		ListingID:     c.ListingID,
		BuyerID:       c.BuyerID,
		SellerID:      c.SellerID,
		Status:        string(c.Status),
		TotalMessages: c.TotalMessages,
		LastMessageAt: timeToMillis(c.LastMessageAt),
		LastMessage:   newPreviewDocument(c.LastMessage),
		Buyer:         newPartyDocument(c.Buyer),
		Seller:        newPartyDocument(c.Seller),
		Typing: typingDocument{
			Buyer:  typingMarkDocument{Active: c.Typing.Buyer.Active, UpdatedAt: timeToMillis(c.Typing.Buyer.UpdatedAt)},
			Seller: typingMarkDocument{Active: c.Typing.Seller.Active, UpdatedAt: timeToMillis(c.Typing.Seller.UpdatedAt)},
		},
		CreatedAt: timeToMillis(c.CreatedAt),
	}
}

func newPartyDocument(p domainconv.PartyState) partyDocument {
	doc := partyDocument{
		Unread:       p.Unread,
		LastReadAt:   timeToMillis(p.LastReadAt),
		ClearedCount: p.ClearedCount,
	}
	if p.ClearedAt != nil {
		ms := p.ClearedAt.UnixMilli()
		doc.ClearedAt = &ms
	}
	return doc
}

func newPreviewDocument(p domainconv.MessagePreview) previewDocument {
	return previewDocument{
		Text:     p.Text,
		SenderID: p.SenderID,
		Kind:     string(p.Kind),
		SentAt:   timeToMillis(p.SentAt),
	}
}

func newMessageDocument(m *domainconv.Message) messageDocument {
	return messageDocument{
		ID:             m.ID,
		ConversationID: string(m.ConversationID),
		SenderID:       m.SenderID,
		Kind:           string(m.Kind),
		Text:           m.Text,
		AttachmentKey:  m.AttachmentKey,
		CreatedAt:      m.CreatedAt.UnixMilli(),
	}
}

func (d conversationDocument) toDomain() *domainconv.Conversation {
	return &domainconv.Conversation{
		ID:            domainconv.ID(d.ID),
		ListingID:     d.ListingID,
		BuyerID:       d.BuyerID,
		SellerID:      d.SellerID,
		Status:        domainconv.Status(d.Status),
		TotalMessages: d.TotalMessages,
		LastMessageAt: millisToTime(d.LastMessageAt),
		LastMessage: domainconv.MessagePreview{
			Text:     d.LastMessage.Text,
			SenderID: d.LastMessage.SenderID,
			Kind:     domainconv.Kind(d.LastMessage.Kind),
			SentAt:   millisToTime(d.LastMessage.SentAt),
		},
		Buyer:  d.Buyer.toDomain(),
		Seller: d.Seller.toDomain(),
		Typing: domainconv.TypingState{
			Buyer:  domainconv.TypingMark{Active: d.Typing.Buyer.Active, UpdatedAt: millisToTime(d.Typing.Buyer.UpdatedAt)},
			Seller: domainconv.TypingMark{Active: d.Typing.Seller.Active, UpdatedAt: millisToTime(d.Typing.Seller.UpdatedAt)},
		},
		CreatedAt: millisToTime(d.CreatedAt),
	}
}

func (d partyDocument) toDomain() domainconv.PartyState {
	state := domainconv.PartyState{
		Unread:       d.Unread,
		LastReadAt:   millisToTime(d.LastReadAt),
		ClearedCount: d.ClearedCount,
	}
	if d.ClearedAt != nil {
		t := millisToTime(*d.ClearedAt)
		state.ClearedAt = &t
	}
	return state
}

func (d messageDocument) toDomain() *domainconv.Message {
	return &domainconv.Message{
		ID:             d.ID,
		ConversationID: domainconv.ID(d.ConversationID),
		SenderID:       d.SenderID,
		Kind:           domainconv.Kind(d.Kind),
		Text:           d.Text,
		AttachmentKey:  d.AttachmentKey,
		CreatedAt:      millisToTime(d.CreatedAt),
	}
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

var _ domainconv.Repository = (*ConversationRepository)(nil)
