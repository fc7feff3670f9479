package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	domainuser "tradepost/internal/domain/user"
	"tradepost/internal/infra/security"
)

const (
	sessionCookieName = "tp_admin_session"
	sessionCookiePath = "/admin"
)

// SessionHTTP issues and revokes the admin session cookie.
type SessionHTTP interface {
	Login(c *gin.Context)
	Logout(c *gin.Context)
}

// SessionHandler exchanges a federated identity token for a signed admin
// session cookie. Only accounts flagged as admin in the user store get one.
type SessionHandler struct {
	Identity IdentityVerifier
	Users    domainuser.Repository
	Signer   *security.SessionSigner
	TTL      time.Duration
	Secure   bool
	Logger   *slog.Logger
}

func (h SessionHandler) ttl() time.Duration {
	if h.TTL > 0 {
		return h.TTL
	}
	return 8 * time.Hour
}

func (h SessionHandler) Login(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	resolved, err := h.Identity.Verify(c.Request.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		respondFault(c, h.Logger, err, "admin login")
		return
	}
	account, err := h.Users.ByID(c.Request.Context(), domainuser.ID(resolved.UID))
	if err != nil || !account.Admin {
		// A valid identity without the admin flag gets the same answer as
		// an unknown one.
		if h.Logger != nil {
			h.Logger.Info("admin login rejected", "uid", resolved.UID)
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	token, err := h.Signer.Mint(resolved.UID, h.ttl())
	if err != nil {
		respondFault(c, h.Logger, err, "mint admin session", "uid", resolved.UID)
		return
	}
	h.setCookie(c, token, int(h.ttl().Seconds()))
	if h.Logger != nil {
		h.Logger.Info("admin session issued", "uid", resolved.UID)
	}
	c.JSON(http.StatusOK, dto.AdminSession{
		UID:       resolved.UID,
		ExpiresIn: int64(h.ttl().Seconds()),
	})
}

func (h SessionHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h SessionHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, value, maxAge, sessionCookiePath, "", h.Secure, true)
}

var _ SessionHTTP = (*SessionHandler)(nil)
