package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	radix "github.com/mediocregopher/radix/v3"

	"tradepost/internal/app/services/chat"
	domainconv "tradepost/internal/domain/conversation"
	domainlisting "tradepost/internal/domain/listing"
	domainuser "tradepost/internal/domain/user"
	"tradepost/internal/infra/broker/kafka"
	"tradepost/internal/infra/config"
	mongostore "tradepost/internal/infra/db/mongo"
	"tradepost/internal/infra/geo"
	ginserver "tradepost/internal/infra/http/gin"
	"tradepost/internal/infra/identity"
	"tradepost/internal/infra/obs"
	"tradepost/internal/infra/ratelimit"
	"tradepost/internal/infra/security"
	"tradepost/internal/infra/storage/memory"
	"tradepost/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	cfg.Env = env

	app, cleanup, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Checks: app.checks,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	checks   []obs.HealthCheck
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var (
		conversations domainconv.Repository
		listings      domainlisting.Repository
		users         domainuser.Repository
		checks        []obs.HealthCheck
	)
	if cfg.MongoURI != "" {
		store, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, cleanup, err
		}
		cleanups = append(cleanups, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		})
		if err := store.Ping(ctx); err != nil {
			logger.Warn("mongo unreachable at startup", "error", err)
		}
		conversations = mongostore.NewConversationRepository(store.DB)
		listings = mongostore.NewListingRepository(store.DB)
		users = mongostore.NewUserRepository(store.DB)
		checks = append(checks, obs.HealthCheck{Name: "mongo", Check: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}})
		logger.Info("using mongo repositories", "database", cfg.MongoDB)
	} else {
		conversations = memory.NewConversationRepository()
		listings = memory.NewListingRepository()
		users = memory.NewUserRepository()
		logger.Warn("MONGO_URI not set, using in-memory repositories")
	}

	var events chat.EventSink
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, nil)
		if err != nil {
			logger.Warn("kafka producer unavailable, events disabled", "error", err)
		} else {
			events = producer
			cleanups = append(cleanups, func() {
				if err := producer.Close(); err != nil {
					logger.Warn("kafka close failed", "error", err)
				}
			})
			logger.Info("kafka event producer ready", "brokers", cfg.KafkaBrokers)
		}
	}

	var attachments s3.AttachmentStore = s3.NoopStore{}
	if cfg.S3Endpoint != "" {
		store, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			logger.Warn("attachment storage unavailable", "error", err)
		} else {
			attachments = store
		}
	}

	strategies := []ratelimit.Strategy{}
	if cfg.RedisAddr != "" {
		pool, err := radix.NewPool("tcp", cfg.RedisAddr, 10)
		if err != nil {
			logger.Warn("redis unavailable, rate limiting is process-local", "error", err)
		} else {
			strategies = append(strategies, ratelimit.NewRedis(pool, "tradepost:rl"))
			cleanups = append(cleanups, func() {
				if err := pool.Close(); err != nil {
					logger.Warn("redis close failed", "error", err)
				}
			})
		}
	}
	strategies = append(strategies, ratelimit.NewLocal())
	limiter := ratelimit.New(logger, strategies...)

	signer, err := security.NewSessionSigner([]byte(cfg.SessionSecret))
	if err != nil {
		return application{}, cleanup, err
	}

	identityClient := &identity.Client{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Endpoint:   cfg.IdentityURL,
		APIKey:     cfg.IdentityAPIKey,
		Logger:     logger,
	}
	geoClient := &geo.Client{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    cfg.GeoBaseURL,
		UserAgent:  cfg.GeoUserAgent,
		Logger:     logger,
	}

	chatService := &chat.Service{
		Conversations: conversations,
		Listings:      listings,
		Events:        events,
		EventTopic:    "chat.events",
		Logger:        logger,
	}

	handlers := ginserver.Handlers{
		Chat: ginserver.ChatHandler{
			Chat:        chatService,
			Attachments: attachments,
			Logger:      logger,
		},
		Geo: ginserver.GeoHandler{
			Geo:    geoClient,
			Logger: logger,
		},
		Session: ginserver.SessionHandler{
			Identity: identityClient,
			Users:    users,
			Signer:   signer,
			TTL:      cfg.SessionTTL,
			Secure:   cfg.Env == "prod",
			Logger:   logger,
		},
		Admin: ginserver.AdminHandler{
			Users:         users,
			Conversations: conversations,
			Logger:        logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Identity: identityClient, Logger: logger}.Handle,
		AdminGate:      ginserver.AdminGate(signer),
		GeoRateLimit:   ginserver.RateLimit(limiter, cfg.GeoRateLimit, cfg.GeoRateWindow),
	}

	return application{handlers: handlers, checks: checks}, cleanup, nil
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
