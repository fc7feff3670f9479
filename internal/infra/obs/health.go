package obs

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck is a named readiness probe for one backing dependency.
type HealthCheck struct {
	Name  string
	Check func() error
}

// HealthHandlers exposes liveness and readiness endpoints. Liveness is
// unconditional; readiness runs every registered probe and names the ones
// that failed.
type HealthHandlers struct {
	Checks []HealthCheck
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	checks := make(map[string]string, len(h.Checks))
	ready := true
	for _, check := range h.Checks {
		if check.Check == nil {
			continue
		}
		if err := check.Check(); err != nil {
			checks[check.Name] = err.Error()
			ready = false
			continue
		}
		checks[check.Name] = "ok"
	}
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}
