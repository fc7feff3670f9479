package ginserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradepost/internal/app/dto"
	"tradepost/internal/app/services/chat"
	domainconv "tradepost/internal/domain/conversation"
	domainlisting "tradepost/internal/domain/listing"
	"tradepost/internal/infra/storage/s3"
)

const (
	maxAttachmentBytes = 10 << 20
	attachmentLinkTTL  = 15 * time.Minute
)

// ChatHTTP exposes the conversation endpoints.
type ChatHTTP interface {
	OpenConversation(c *gin.Context)
	ListMyConversations(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	Hide(c *gin.Context)
	SetTyping(c *gin.Context)
	UploadAttachment(c *gin.Context)
}

type ChatHandler struct {
	Chat        *chat.Service
	Attachments s3.AttachmentStore
	Logger      *slog.Logger
}

// OpenConversation resolves or creates the buyer's thread for a listing.
// Repeated calls return the same conversation.
func (h ChatHandler) OpenConversation(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	listingID := strings.TrimSpace(c.Param("id"))
	if listingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	conv, err := h.Chat.OpenOrCreate(c.Request.Context(), domainlisting.ID(listingID), principal.ID)
	if err != nil {
		respondFault(c, h.Logger, err, "open conversation", "listing_id", listingID, "user_id", principal.ID)
		return
	}
	role, _ := conv.RoleOf(principal.ID)
	c.JSON(http.StatusOK, dto.MapConversation(conv, role))
}

// ListMyConversations returns the caller's inbox, already filtered down to
// visible threads.
func (h ChatHandler) ListMyConversations(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	entries, err := h.Chat.Inbox(c.Request.Context(), principal.ID)
	if err != nil {
		respondFault(c, h.Logger, err, "list conversations", "user_id", principal.ID)
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(entries))}
	for _, entry := range entries {
		collection.Items = append(collection.Items, dto.MapInboxEntry(entry))
	}
	c.JSON(http.StatusOK, collection)
}

// ListMessages returns the newest messages of a conversation the caller
// participates in. Image messages get a short-lived download link.
func (h ChatHandler) ListMessages(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	limit := parseIntWithDefault(c.Query("limit"), 50)
	messages, err := h.Chat.Messages(c.Request.Context(), domainconv.ID(conversationID), principal.ID, limit)
	if err != nil {
		respondFault(c, h.Logger, err, "list messages", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	collection := dto.ChatMessageList{Items: make([]dto.ChatMessage, 0, len(messages))}
	for _, msg := range messages {
		item := dto.MapChatMessage(msg)
		if msg.AttachmentKey != "" && h.Attachments != nil {
			if url, err := h.Attachments.DownloadURL(c.Request.Context(), msg.AttachmentKey, attachmentLinkTTL); err == nil {
				item.AttachmentURL = url
			}
		}
		collection.Items = append(collection.Items, item)
	}
	c.JSON(http.StatusOK, collection)
}

// SendMessage posts a text or image message.
func (h ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		Kind          string `json:"kind"`
		Text          string `json:"text"`
		AttachmentKey string `json:"attachment_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	kind := domainconv.Kind(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = domainconv.KindText
	}
	msg, err := h.Chat.Send(c.Request.Context(), chat.SendParams{
		ConversationID: domainconv.ID(conversationID),
		SenderID:       principal.ID,
		Kind:           kind,
		Text:           req.Text,
		AttachmentKey:  req.AttachmentKey,
	})
	if err != nil {
		respondFault(c, h.Logger, err, "send message", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.MapChatMessage(msg))
}

// MarkRead zeroes the caller's unread counter. When nothing was unread the
// response says so instead of pretending a write happened.
func (h ChatHandler) MarkRead(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	result, err := h.Chat.MarkRead(c.Request.Context(), domainconv.ID(conversationID), principal.ID)
	if err != nil {
		respondFault(c, h.Logger, err, "mark read", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, dto.ReadReceipt{AlreadyRead: result.AlreadyRead, ReadAt: result.ReadAt})
}

// Hide soft-deletes the conversation for the caller only.
func (h ChatHandler) Hide(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if err := h.Chat.Hide(c.Request.Context(), domainconv.ID(conversationID), principal.ID); err != nil {
		respondFault(c, h.Logger, err, "hide conversation", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetTyping records the caller's typing mark.
func (h ChatHandler) SetTyping(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.Chat.SetTyping(c.Request.Context(), domainconv.ID(conversationID), principal.ID, req.Active); err != nil {
		respondFault(c, h.Logger, err, "set typing", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadAttachment stores an image for a later image message and returns the
// object key to reference in the send call.
func (h ChatHandler) UploadAttachment(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if h.Attachments == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment storage unavailable"})
		return
	}
	// Membership check before touching storage.
	if _, _, err := h.Chat.Conversation(c.Request.Context(), domainconv.ID(conversationID), principal.ID); err != nil {
		respondFault(c, h.Logger, err, "upload attachment", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()
	if header.Size > maxAttachmentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment too large"})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only image attachments are accepted"})
		return
	}

	key := fmt.Sprintf("conversations/%s/%s%s", conversationID, uuid.NewString(), path.Ext(header.Filename))
	storedKey, err := h.Attachments.Upload(c.Request.Context(), key, io.LimitReader(file, maxAttachmentBytes), contentType)
	if err != nil {
		respondFault(c, h.Logger, err, "upload attachment", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	resp := dto.Attachment{Key: storedKey}
	if url, err := h.Attachments.DownloadURL(c.Request.Context(), storedKey, attachmentLinkTTL); err == nil {
		resp.URL = url
	}
	c.JSON(http.StatusCreated, resp)
}

var _ ChatHTTP = (*ChatHandler)(nil)
