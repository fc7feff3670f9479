package ginserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/infra/security"
)

func newGateRouter(t *testing.T) (*gin.Engine, *security.SessionSigner) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := security.NewSessionSigner([]byte("gate-test-secret"))
	if err != nil {
		t.Fatalf("NewSessionSigner: %v", err)
	}
	router := gin.New()
	admin := router.Group("/admin")
	admin.Use(AdminGate(signer))
	admin.GET("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"login_required": true})
	})
	admin.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": adminUID(c)})
	})
	return router, signer
}

func TestAdminGateRedirectsWithoutCookie(t *testing.T) {
	router, _ := newGateRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "/admin/login?next=") {
		t.Fatalf("Location = %q, want /admin/login?next=...", loc)
	}
	if !strings.Contains(loc, "%2Fadmin%2Fusers") {
		t.Fatalf("Location = %q, want return-to for /admin/users", loc)
	}
}

func TestAdminGateClearsInvalidCookie(t *testing.T) {
	router, _ := newGateRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	cleared := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value == "" && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected the session cookie to be cleared")
	}
}

func TestAdminGateAdmitsValidCookie(t *testing.T) {
	router, signer := newGateRouter(t)

	token, err := signer.Mint("admin-1", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "admin-1") {
		t.Fatalf("body = %q, want the session uid", rec.Body.String())
	}
}

func TestAdminGateSkipsLoginRoute(t *testing.T) {
	router, _ := newGateRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/login", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAdminGateRejectsExpiredSession(t *testing.T) {
	router, signer := newGateRouter(t)

	signer.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := signer.Mint("admin-1", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	signer.Now = nil

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
	}
}
