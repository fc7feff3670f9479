package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	domainconv "tradepost/internal/domain/conversation"
	"tradepost/internal/domain/fault"
)

// respondFault maps an error category onto an HTTP status and writes a
// uniform error body. Validation sentinels from the conversation domain are
// turned into 400s with their own message.
func respondFault(c *gin.Context, logger *slog.Logger, err error, action string, attrs ...any) {
	if logger != nil {
		logger.Error(action+" failed", append([]any{"error", err}, attrs...)...)
	}
	switch {
	case errors.Is(err, domainconv.ErrSelfConversation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	case errors.Is(err, domainconv.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	case errors.Is(err, domainconv.ErrTextRequired),
		errors.Is(err, domainconv.ErrAttachmentRequired),
		errors.Is(err, domainconv.ErrKindUnknown):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch fault.CategoryOf(err) {
	case fault.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case fault.Invalid, fault.Precondition:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case fault.Unauthenticated:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	case fault.Permission:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case fault.AlreadyExists:
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case fault.RateLimited:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	case fault.Timeout, fault.Cancelled, fault.Unavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseIntWithDefault(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}
