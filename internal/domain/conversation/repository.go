package conversation

import (
	"context"
	"time"
)

// Repository persists conversations and their message log.
//
// The Apply* operations are single round-trip, field-path merge writes:
// each one touches only the fields it names, leaving concurrent writers of
// other fields untouched. The backing store must honor that granularity.
type Repository interface {
	Get(ctx context.Context, id ID) (*Conversation, error)
	Create(ctx context.Context, conv *Conversation) error
	InboxFor(ctx context.Context, userID string) ([]*Conversation, error)
	ListAll(ctx context.Context, limit int) ([]*Conversation, error)

	// ApplySend records a new message on the counters: total bumps by one,
	// the receiving party's unread bumps by one, the preview is replaced.
	ApplySend(ctx context.Context, id ID, sender Role, preview MessagePreview, at time.Time) error
	// ApplyRead zeroes the party's unread counter and stamps lastReadAt.
	ApplyRead(ctx context.Context, id ID, role Role, at time.Time) error
	// ApplyHide snapshots totalAtHide into the party's clearedCount, stamps
	// clearedAt, and zeroes the party's unread.
	ApplyHide(ctx context.Context, id ID, role Role, totalAtHide int, at time.Time) error
	// ApplyReopen lifts the party's soft delete so the conversation shows up
	// in their inbox again. The clearedCount snapshot is kept.
	ApplyReopen(ctx context.Context, id ID, role Role) error
	SetTyping(ctx context.Context, id ID, role Role, active bool, at time.Time) error

	AppendMessage(ctx context.Context, msg *Message) error
	Messages(ctx context.Context, id ID, limit int) ([]*Message, error)
}
