package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"tradepost/internal/infra/config"
	"tradepost/internal/infra/obs"
)

type Handlers struct {
	Chat    ChatHTTP
	Geo     GeoHTTP
	Session SessionHTTP
	Admin   AdminHTTP

	AuthMiddleware gin.HandlerFunc
	AdminGate      gin.HandlerFunc
	GeoRateLimit   gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Chat != nil {
		api.POST("/listings/:id/conversations", h.Chat.OpenConversation)
		api.GET("/me/conversations", h.Chat.ListMyConversations)
		conv := api.Group("/conversations/:id")
		conv.GET("/messages", h.Chat.ListMessages)
		conv.POST("/messages", h.Chat.SendMessage)
		conv.POST("/read", h.Chat.MarkRead)
		conv.POST("/typing", h.Chat.SetTyping)
		conv.POST("/attachments", h.Chat.UploadAttachment)
		api.DELETE("/conversations/:id", h.Chat.Hide)
	}
	if h.Geo != nil {
		geoGroup := api.Group("/geo")
		if h.GeoRateLimit != nil {
			geoGroup.Use(h.GeoRateLimit)
		}
		geoGroup.GET("/search", h.Geo.Search)
		geoGroup.GET("/reverse", h.Geo.Reverse)
	}
	if h.Admin != nil {
		admin := router.Group("/admin")
		if h.AdminGate != nil {
			admin.Use(h.AdminGate)
		}
		admin.GET("/login", h.Admin.LoginPage)
		if h.Session != nil {
			admin.POST("/session", h.Session.Login)
			admin.DELETE("/session", h.Session.Logout)
		}
		admin.GET("/users", h.Admin.ListUsers)
		admin.GET("/conversations", h.Admin.ListConversations)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
