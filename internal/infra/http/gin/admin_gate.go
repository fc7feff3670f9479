package ginserver

import (
	"net/http"
	"net/url"
	"strings"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/infra/security"
)

const adminLoginPath = "/admin/login"

const adminUIDContextKey = "tradepost.admin_uid"

// AdminGate protects everything under /admin. Requests without a valid
// session cookie are redirected to the login page with the original path as
// return-to, and the stale cookie is cleared on the way out. The login and
// session-exchange routes themselves stay open.
func AdminGate(signer *security.SessionSigner) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gateExempt(c.Request.URL.Path) {
			c.Next()
			return
		}
		token, err := c.Cookie(sessionCookieName)
		if err != nil || !signer.Verify(token) {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookieName, "", -1, sessionCookiePath, "", false, true)
			c.Redirect(http.StatusFound, adminLoginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Set(adminUIDContextKey, signer.UID(token))
		c.Next()
	}
}

func gateExempt(path string) bool {
	path = strings.TrimSuffix(path, "/")
	return path == adminLoginPath || path == "/admin/session"
}

func adminUID(c *gin.Context) string {
	uid, _ := c.Get(adminUIDContextKey)
	s, _ := uid.(string)
	return s
}
