package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/app/dto"
	"tradepost/internal/infra/geo"
)

// GeoHTTP exposes the geocoding proxy endpoints.
type GeoHTTP interface {
	Search(c *gin.Context)
	Reverse(c *gin.Context)
}

type GeoHandler struct {
	Geo    *geo.Client
	Logger *slog.Logger
}

// Search resolves a free-text query to candidate places.
func (h GeoHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "q is required"})
		return
	}
	limit := parseIntWithDefault(c.Query("limit"), 5)
	places, err := h.Geo.Forward(c.Request.Context(), query, limit)
	if err != nil {
		h.respondGeoError(c, err, "geo search", "query", query)
		return
	}
	c.JSON(http.StatusOK, dto.GeoResult{OK: true, Places: dto.MapGeoPlaces(places)})
}

// Reverse resolves coordinates to the nearest place. The longitude arrives
// as lng, with lon accepted as an alias for provider-shaped callers.
func (h GeoHandler) Reverse(c *gin.Context) {
	rawLng := strings.TrimSpace(c.Query("lng"))
	if rawLng == "" {
		rawLng = strings.TrimSpace(c.Query("lon"))
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(c.Query("lat")), 64)
	lon, lonErr := strconv.ParseFloat(rawLng, 64)
	if latErr != nil || lonErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "lat and lng are required"})
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "coordinates out of range"})
		return
	}
	place, err := h.Geo.Reverse(c.Request.Context(), lat, lon)
	if err != nil {
		h.respondGeoError(c, err, "geo reverse", "lat", lat, "lon", lon)
		return
	}
	c.JSON(http.StatusOK, dto.GeoResult{OK: true, Places: dto.MapGeoPlaces([]geo.Place{place})})
}

// The provider is an external dependency; its failures are presented as a
// soft "ok: false" so the frontend degrades instead of erroring.
func (h GeoHandler) respondGeoError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Warn(action+" failed", append([]any{"error", err}, attrs...)...)
	}
	c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "geocoding unavailable"})
}

var _ GeoHTTP = (*GeoHandler)(nil)
