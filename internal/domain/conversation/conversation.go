package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

var (
	ErrListingRequired  = errors.New("conversation: listing id is required")
	ErrPartyRequired    = errors.New("conversation: both participants are required")
	ErrSelfConversation = errors.New("conversation: buyer and seller are the same user")
	ErrNotParticipant   = errors.New("conversation: user is not a participant")
)

// TypingFreshness bounds how long a stored typing mark is believed.
// Older marks are reported as "not typing" regardless of the stored flag.
const TypingFreshness = 8 * time.Second

type ID string

// NewID derives the conversation identity from its (listing, buyer, seller)
// triple. The same triple always maps to the same identity, which makes
// creation idempotent without any coordination.
func NewID(listingID, buyerID, sellerID string) ID {
	sum := sha256.Sum256([]byte(listingID + "\x00" + buyerID + "\x00" + sellerID))
	return ID(hex.EncodeToString(sum[:16]))
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

func (r Role) Other() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// PartyState holds the counters one participant owns. Each field is written
// by exactly one logical actor, so last-writer-wins per field is safe.
type PartyState struct {
	Unread       int
	LastReadAt   time.Time
	ClearedAt    *time.Time
	ClearedCount int
}

// TypingMark is a per-role typing indicator. Readers must interpret it
// through Conversation.TypingFresh; the stored flag alone is not trustworthy.
type TypingMark struct {
	Active    bool
	UpdatedAt time.Time
}

type TypingState struct {
	Buyer  TypingMark
	Seller TypingMark
}

// MessagePreview is the denormalized last-message snapshot shown in inboxes.
type MessagePreview struct {
	Text     string
	SenderID string
	Kind     Kind
	SentAt   time.Time
}

// Conversation is a two-party chat scoped to a single listing.
type Conversation struct {
	ID            ID
	ListingID     string
	BuyerID       string
	SellerID      string
	Status        Status
	TotalMessages int
	LastMessageAt time.Time
	LastMessage   MessagePreview
	Buyer         PartyState
	Seller        PartyState
	Typing        TypingState
	CreatedAt     time.Time
}

type CreateParams struct {
	ListingID string
	BuyerID   string
	SellerID  string
	Now       time.Time
}

func New(params CreateParams) (*Conversation, error) {
	listingID := strings.TrimSpace(params.ListingID)
	buyerID := strings.TrimSpace(params.BuyerID)
	sellerID := strings.TrimSpace(params.SellerID)
	if listingID == "" {
		return nil, ErrListingRequired
	}
	if buyerID == "" || sellerID == "" {
		return nil, ErrPartyRequired
	}
	if buyerID == sellerID {
		return nil, ErrSelfConversation
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Conversation{
		ID:        NewID(listingID, buyerID, sellerID),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Status:    StatusActive,
		CreatedAt: now.UTC(),
	}, nil
}

// RoleOf resolves which side of the conversation a user is on. Membership is
// order-independent: the caller does not need to know who opened the chat.
func (c *Conversation) RoleOf(userID string) (Role, bool) {
	switch userID {
	case c.BuyerID:
		return RoleBuyer, true
	case c.SellerID:
		return RoleSeller, true
	default:
		return "", false
	}
}

func (c *Conversation) Party(role Role) *PartyState {
	if role == RoleBuyer {
		return &c.Buyer
	}
	return &c.Seller
}

func (c *Conversation) typingMark(role Role) TypingMark {
	if role == RoleBuyer {
		return c.Typing.Buyer
	}
	return c.Typing.Seller
}

// VisibleTo reports whether the conversation belongs in a party's inbox:
// it must carry at least one real message, and any soft delete by that party
// must predate the latest message.
func (c *Conversation) VisibleTo(role Role) bool {
	if c.TotalMessages == 0 {
		return false
	}
	cleared := c.Party(role).ClearedAt
	if cleared == nil {
		return true
	}
	return c.LastMessageAt.After(*cleared)
}

// VisibleCount is the running message total a party should see. Soft deletes
// subtract the snapshot taken at clearing time without touching the other
// party's view or the underlying log.
func (c *Conversation) VisibleCount(role Role) int {
	n := c.TotalMessages - c.Party(role).ClearedCount
	if n < 0 {
		return 0
	}
	return n
}

// TypingFresh interprets a stored typing mark at read time.
func (c *Conversation) TypingFresh(role Role, now time.Time) bool {
	mark := c.typingMark(role)
	if !mark.Active {
		return false
	}
	return now.Sub(mark.UpdatedAt) <= TypingFreshness
}
