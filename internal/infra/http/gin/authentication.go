package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/domain/fault"
	"tradepost/internal/infra/identity"
)

const principalContextKey = "tradepost.principal"

type principal struct {
	ID    string
	Email string
	Name  string
}

// IdentityVerifier resolves a federated bearer token to an account.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (identity.Identity, error)
}

type AuthMiddleware struct {
	Identity IdentityVerifier
	Logger   *slog.Logger
}

// Handle attaches a principal when a valid bearer token is present. Requests
// without one pass through anonymous; handlers decide whether that is fatal.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Identity == nil {
		c.Next()
		return
	}
	resolved, err := m.Identity.Verify(c.Request.Context(), token)
	if err != nil {
		if !fault.Is(err, fault.Unauthenticated) && m.Logger != nil {
			m.Logger.Debug("token verification failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, principal{ID: resolved.UID, Email: resolved.Email, Name: resolved.Name})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireUser(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok || p.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
