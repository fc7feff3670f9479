package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	domainconv "tradepost/internal/domain/conversation"
	domainlisting "tradepost/internal/domain/listing"
	"tradepost/internal/infra/storage/memory"
)

type recordedEvent struct {
	topic   string
	key     string
	payload []byte
}

type stubSink struct {
	events []recordedEvent
	err    error
}

func (s *stubSink) Publish(_ context.Context, topic, key string, payload []byte, _ map[string]string) error {
	s.events = append(s.events, recordedEvent{topic: topic, key: key, payload: payload})
	return s.err
}

type fixture struct {
	service *Service
	repo    *memory.ConversationRepository
	sink    *stubSink
	clock   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	listings := memory.NewListingRepository()
	l, err := domainlisting.New(domainlisting.CreateParams{
		ID:       "listing-1",
		SellerID: "seller-1",
		Title:    "Mountain bike",
	})
	if err != nil {
		t.Fatalf("new listing: %v", err)
	}
	if err := listings.Save(context.Background(), l); err != nil {
		t.Fatalf("save listing: %v", err)
	}

	repo := memory.NewConversationRepository()
	sink := &stubSink{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{
		Conversations: repo,
		Listings:      listings,
		Events:        sink,
		Now:           func() time.Time { return now },
	}
	return &fixture{service: svc, repo: repo, sink: sink, clock: &now}
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestOpenOrCreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	second, err := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %s vs %s", first.ID, second.ID)
	}
	all, _ := f.repo.ListAll(ctx, 0)
	if len(all) != 1 {
		t.Errorf("conversations stored = %d, want 1", len(all))
	}
}

func TestOpenOrCreateRejectsSelfMessaging(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.OpenOrCreate(context.Background(), "listing-1", "seller-1")
	if !errors.Is(err, domainconv.ErrSelfConversation) {
		t.Fatalf("err = %v, want ErrSelfConversation", err)
	}
	all, _ := f.repo.ListAll(context.Background(), 0)
	if len(all) != 0 {
		t.Error("no record must be created on rejection")
	}
}

func TestSendUpdatesCountersForReceiverOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")

	msg, err := f.service.Send(ctx, SendParams{
		ConversationID: conv.ID,
		SenderID:       "buyer-1",
		Kind:           domainconv.KindText,
		Text:           "still available?",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	got, _ := f.repo.Get(ctx, conv.ID)
	if got.TotalMessages != 1 {
		t.Errorf("total = %d, want 1", got.TotalMessages)
	}
	if got.Seller.Unread != 1 {
		t.Errorf("seller unread = %d, want 1", got.Seller.Unread)
	}
	if got.Buyer.Unread != 0 {
		t.Errorf("buyer unread = %d, want 0 (sender untouched)", got.Buyer.Unread)
	}
	if got.LastMessage.Text != "still available?" {
		t.Errorf("preview = %q", got.LastMessage.Text)
	}
	if !got.LastMessageAt.Equal(msg.CreatedAt) {
		t.Error("lastMessageAt must match the message timestamp")
	}
}

func TestSendImageUsesPreviewLabel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")

	_, err := f.service.Send(ctx, SendParams{
		ConversationID: conv.ID,
		SenderID:       "buyer-1",
		Kind:           domainconv.KindImage,
		AttachmentKey:  "chat/abc/img.jpg",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	got, _ := f.repo.Get(ctx, conv.ID)
	if got.LastMessage.Text != domainconv.PreviewLabelImage {
		t.Errorf("preview = %q, want %q", got.LastMessage.Text, domainconv.PreviewLabelImage)
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")

	_, err := f.service.Send(ctx, SendParams{
		ConversationID: conv.ID,
		SenderID:       "stranger",
		Kind:           domainconv.KindText,
		Text:           "hi",
	})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}
}

func TestMarkReadSignalsAlreadyRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")

	res, err := f.service.MarkRead(ctx, conv.ID, "seller-1")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !res.AlreadyRead {
		t.Error("nothing unread: expected AlreadyRead signal")
	}

	f.service.Send(ctx, SendParams{ConversationID: conv.ID, SenderID: "buyer-1", Kind: domainconv.KindText, Text: "hi"})
	res, err = f.service.MarkRead(ctx, conv.ID, "seller-1")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if res.AlreadyRead {
		t.Error("unread present: expected a real read")
	}
	got, _ := f.repo.Get(ctx, conv.ID)
	if got.Seller.Unread != 0 {
		t.Errorf("seller unread = %d, want 0", got.Seller.Unread)
	}
	if !got.Seller.LastReadAt.Equal(res.ReadAt) {
		t.Error("lastReadAt must be stamped")
	}
}

func TestHideAffectsOnlyTheCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")

	for i := 0; i < 10; i++ {
		if _, err := f.service.Send(ctx, SendParams{ConversationID: conv.ID, SenderID: "buyer-1", Kind: domainconv.KindText, Text: "msg"}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := f.service.Hide(ctx, conv.ID, "buyer-1"); err != nil {
		t.Fatalf("hide: %v", err)
	}

	// Hidden and no newer message: invisible to the buyer, untouched seller.
	buyerInbox, _ := f.service.Inbox(ctx, "buyer-1")
	if len(buyerInbox) != 0 {
		t.Errorf("buyer inbox = %d entries, want 0", len(buyerInbox))
	}
	sellerInbox, _ := f.service.Inbox(ctx, "seller-1")
	if len(sellerInbox) != 1 || sellerInbox[0].VisibleCount != 10 {
		t.Fatalf("seller inbox = %+v, want 1 entry with 10 visible", sellerInbox)
	}

	// Two new messages arrive: buyer sees the conversation again with a
	// visible count of 2; the seller still sees all 12.
	f.advance(time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := f.service.Send(ctx, SendParams{ConversationID: conv.ID, SenderID: "seller-1", Kind: domainconv.KindText, Text: "reply"}); err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
	}
	buyerInbox, _ = f.service.Inbox(ctx, "buyer-1")
	if len(buyerInbox) != 1 {
		t.Fatalf("buyer inbox = %d entries, want 1", len(buyerInbox))
	}
	if buyerInbox[0].VisibleCount != 2 {
		t.Errorf("buyer visible count = %d, want 2", buyerInbox[0].VisibleCount)
	}
	sellerInbox, _ = f.service.Inbox(ctx, "seller-1")
	if sellerInbox[0].VisibleCount != 12 {
		t.Errorf("seller visible count = %d, want 12", sellerInbox[0].VisibleCount)
	}
}

func TestHideZeroesCallersUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")
	f.service.Send(ctx, SendParams{ConversationID: conv.ID, SenderID: "buyer-1", Kind: domainconv.KindText, Text: "hi"})

	if err := f.service.Hide(ctx, conv.ID, "seller-1"); err != nil {
		t.Fatalf("hide: %v", err)
	}
	got, _ := f.repo.Get(ctx, conv.ID)
	if got.Seller.Unread != 0 {
		t.Errorf("seller unread = %d, want 0 after hide", got.Seller.Unread)
	}
	if got.Seller.ClearedCount != 1 {
		t.Errorf("cleared count = %d, want 1", got.Seller.ClearedCount)
	}
}

func TestOpenOrCreateReopensAfterHide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")
	f.service.Send(ctx, SendParams{ConversationID: conv.ID, SenderID: "buyer-1", Kind: domainconv.KindText, Text: "hi"})
	f.advance(time.Second)
	if err := f.service.Hide(ctx, conv.ID, "buyer-1"); err != nil {
		t.Fatalf("hide: %v", err)
	}

	reopened, err := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ID != conv.ID {
		t.Error("reopen must return the same conversation")
	}
	got, _ := f.repo.Get(ctx, conv.ID)
	if got.Buyer.ClearedAt != nil {
		t.Error("buyer's soft delete must be lifted on contact")
	}
	buyerInbox, _ := f.service.Inbox(ctx, "buyer-1")
	if len(buyerInbox) != 1 {
		t.Errorf("buyer inbox = %d entries, want 1 after reopen", len(buyerInbox))
	}
}

func TestInboxHidesEmptyConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, uid := range []string{"buyer-1", "seller-1"} {
		inbox, err := f.service.Inbox(ctx, uid)
		if err != nil {
			t.Fatalf("inbox %s: %v", uid, err)
		}
		if len(inbox) != 0 {
			t.Errorf("%s inbox = %d entries, want 0 before any message", uid, len(inbox))
		}
	}
}

func TestTypingIndicatorFreshness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")
	f.service.Send(ctx, SendParams{ConversationID: conv.ID, SenderID: "buyer-1", Kind: domainconv.KindText, Text: "hi"})

	if err := f.service.SetTyping(ctx, conv.ID, "buyer-1", true); err != nil {
		t.Fatalf("set typing: %v", err)
	}

	f.advance(5 * time.Second)
	sellerInbox, _ := f.service.Inbox(ctx, "seller-1")
	if !sellerInbox[0].PeerTyping {
		t.Error("5s-old mark must read as typing")
	}

	f.advance(4 * time.Second) // 9s total
	sellerInbox, _ = f.service.Inbox(ctx, "seller-1")
	if sellerInbox[0].PeerTyping {
		t.Error("9s-old mark must read as not typing")
	}
}

func TestSendEmitsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, _ := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")
	if _, err := f.service.Send(ctx, SendParams{ConversationID: conv.ID, SenderID: "buyer-1", Kind: domainconv.KindText, Text: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(f.sink.events) != 2 { // created + sent
		t.Fatalf("events = %d, want 2", len(f.sink.events))
	}
	if f.sink.events[1].key != string(conv.ID) {
		t.Error("events must be keyed by conversation id")
	}
}

func TestEventSinkFailureDoesNotFailSend(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("broker down")
	ctx := context.Background()
	conv, err := f.service.OpenOrCreate(ctx, "listing-1", "buyer-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.service.Send(ctx, SendParams{ConversationID: conv.ID, SenderID: "buyer-1", Kind: domainconv.KindText, Text: "hi"}); err != nil {
		t.Fatalf("send must succeed despite broker failure: %v", err)
	}
}
