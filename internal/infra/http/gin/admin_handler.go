package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	domainconv "tradepost/internal/domain/conversation"
	domainuser "tradepost/internal/domain/user"
)

// AdminHTTP exposes the back-office endpoints behind the session gate.
type AdminHTTP interface {
	LoginPage(c *gin.Context)
	ListUsers(c *gin.Context)
	ListConversations(c *gin.Context)
}

type AdminHandler struct {
	Users         domainuser.Repository
	Conversations domainconv.Repository
	Logger        *slog.Logger
}

// LoginPage is the redirect target for gated requests. The cookie exchange
// itself happens over POST /admin/session.
func (h AdminHandler) LoginPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"login_required": true,
		"next":           c.Query("next"),
	})
}

func (h AdminHandler) ListUsers(c *gin.Context) {
	limit := parseIntWithDefault(c.Query("limit"), 50)
	offset := parseIntWithDefault(c.Query("offset"), 0)
	users, total, err := h.Users.List(c.Request.Context(), domainuser.ListParams{
		Query:  c.Query("query"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondFault(c, h.Logger, err, "list users", "admin_uid", adminUID(c))
		return
	}
	resp := dto.UserList{
		Items: make([]dto.UserProfile, 0, len(users)),
		Total: total,
	}
	for _, user := range users {
		resp.Items = append(resp.Items, dto.MapUserProfile(user))
	}
	c.JSON(http.StatusOK, resp)
}

// ListConversations gives moderators a raw view across all threads,
// without any party's visibility filtering applied.
func (h AdminHandler) ListConversations(c *gin.Context) {
	limit := parseIntWithDefault(c.Query("limit"), 100)
	conversations, err := h.Conversations.ListAll(c.Request.Context(), limit)
	if err != nil {
		respondFault(c, h.Logger, err, "list conversations", "admin_uid", adminUID(c))
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(conversations))}
	for _, conv := range conversations {
		collection.Items = append(collection.Items, dto.MapConversation(conv, ""))
	}
	c.JSON(http.StatusOK, collection)
}

var _ AdminHTTP = (*AdminHandler)(nil)
