package ginserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	"tradepost/internal/app/services/chat"
	domainlisting "tradepost/internal/domain/listing"
	"tradepost/internal/infra/storage/memory"
)

func newChatRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	listings := memory.NewListingRepository()
	l, err := domainlisting.New(domainlisting.CreateParams{
		ID:       "listing-1",
		SellerID: "seller-1",
		Title:    "Road bike",
	})
	if err != nil {
		t.Fatalf("listing.New: %v", err)
	}
	if err := listings.Save(context.Background(), l); err != nil {
		t.Fatalf("Save listing: %v", err)
	}

	service := &chat.Service{
		Conversations: memory.NewConversationRepository(),
		Listings:      listings,
	}
	handler := ChatHandler{Chat: service}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			setPrincipal(c, principal{ID: uid})
		}
		c.Next()
	})
	api := router.Group("/api/v1")
	api.POST("/listings/:id/conversations", handler.OpenConversation)
	api.GET("/me/conversations", handler.ListMyConversations)
	conv := api.Group("/conversations/:id")
	conv.POST("/messages", handler.SendMessage)
	conv.GET("/messages", handler.ListMessages)
	conv.POST("/read", handler.MarkRead)
	api.DELETE("/conversations/:id", handler.Hide)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOpenConversationRequiresAuth(t *testing.T) {
	router := newChatRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/listings/listing-1/conversations", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestOpenConversationIsIdempotent(t *testing.T) {
	router := newChatRouter(t)

	first := doJSON(t, router, http.MethodPost, "/api/v1/listings/listing-1/conversations", "buyer-1", "")
	if first.Code != http.StatusOK {
		t.Fatalf("first open: status = %d (body %s)", first.Code, first.Body.String())
	}
	second := doJSON(t, router, http.MethodPost, "/api/v1/listings/listing-1/conversations", "buyer-1", "")
	if second.Code != http.StatusOK {
		t.Fatalf("second open: status = %d", second.Code)
	}

	var a, b dto.Conversation
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("conversation ids differ: %q vs %q", a.ID, b.ID)
	}
	if a.Role != "buyer" {
		t.Fatalf("role = %q, want buyer", a.Role)
	}
}

func TestOpenConversationRejectsSeller(t *testing.T) {
	router := newChatRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/listings/listing-1/conversations", "seller-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSendAndReadFlow(t *testing.T) {
	router := newChatRouter(t)

	open := doJSON(t, router, http.MethodPost, "/api/v1/listings/listing-1/conversations", "buyer-1", "")
	var conv dto.Conversation
	if err := json.Unmarshal(open.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode open: %v", err)
	}

	send := doJSON(t, router, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "buyer-1", `{"text":"still available?"}`)
	if send.Code != http.StatusCreated {
		t.Fatalf("send: status = %d (body %s)", send.Code, send.Body.String())
	}

	// The seller sees one unread message.
	inbox := doJSON(t, router, http.MethodGet, "/api/v1/me/conversations", "seller-1", "")
	var list dto.ConversationList
	if err := json.Unmarshal(inbox.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode inbox: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Unread != 1 {
		t.Fatalf("seller inbox = %+v, want one conversation with unread 1", list.Items)
	}

	read := doJSON(t, router, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/read", "seller-1", "")
	var receipt dto.ReadReceipt
	if err := json.Unmarshal(read.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.AlreadyRead {
		t.Fatal("first read must not report already_read")
	}

	again := doJSON(t, router, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/read", "seller-1", "")
	if err := json.Unmarshal(again.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("decode second receipt: %v", err)
	}
	if !receipt.AlreadyRead {
		t.Fatal("second read must report already_read")
	}
}

func TestOutsiderCannotReadMessages(t *testing.T) {
	router := newChatRouter(t)

	open := doJSON(t, router, http.MethodPost, "/api/v1/listings/listing-1/conversations", "buyer-1", "")
	var conv dto.Conversation
	if err := json.Unmarshal(open.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode open: %v", err)
	}
	doJSON(t, router, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "buyer-1", `{"text":"hi"}`)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "intruder", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHideRemovesFromInboxOnly(t *testing.T) {
	router := newChatRouter(t)

	open := doJSON(t, router, http.MethodPost, "/api/v1/listings/listing-1/conversations", "buyer-1", "")
	var conv dto.Conversation
	if err := json.Unmarshal(open.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode open: %v", err)
	}
	doJSON(t, router, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "buyer-1", `{"text":"hi"}`)

	hide := doJSON(t, router, http.MethodDelete, "/api/v1/conversations/"+conv.ID, "buyer-1", "")
	if hide.Code != http.StatusNoContent {
		t.Fatalf("hide: status = %d, want %d", hide.Code, http.StatusNoContent)
	}

	var list dto.ConversationList
	buyerInbox := doJSON(t, router, http.MethodGet, "/api/v1/me/conversations", "buyer-1", "")
	if err := json.Unmarshal(buyerInbox.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode buyer inbox: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("buyer inbox has %d items, want 0 after hide", len(list.Items))
	}

	sellerInbox := doJSON(t, router, http.MethodGet, "/api/v1/me/conversations", "seller-1", "")
	if err := json.Unmarshal(sellerInbox.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode seller inbox: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("seller inbox has %d items, want 1", len(list.Items))
	}
}
