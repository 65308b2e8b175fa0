package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/duochat/duochat-server/internal/config"
	"github.com/duochat/duochat-server/internal/database"
	"github.com/duochat/duochat-server/internal/handler"
	"github.com/duochat/duochat-server/internal/jobs"
	"github.com/duochat/duochat-server/internal/middleware"
	"github.com/duochat/duochat-server/internal/redis"
	"github.com/duochat/duochat-server/internal/relay"
	"github.com/duochat/duochat-server/internal/repository"
	"github.com/duochat/duochat-server/internal/service"
	"github.com/duochat/duochat-server/internal/session"
	"github.com/duochat/duochat-server/internal/storage"
	"github.com/duochat/duochat-server/internal/token"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	voiceStore, err := storage.NewVoiceStore(cfg.VoiceDir, cfg.VoiceMaxBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init voice store")
	}

	pairingCodeRepo := repository.NewPairingCodeRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	issuer := token.NewIssuer(cfg.ClaimSecret)
	sessions := session.NewTable()

	pairingService := service.NewPairingService(pairingCodeRepo, roomRepo, cfg.PairingTTL())
	messageService := service.NewMessageService(messageRepo)

	hub := relay.NewHub(sessions, issuer, messageService)

	authMiddleware := middleware.NewAuthMiddleware(issuer)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	voiceBodyLimitMiddleware := middleware.NewBodyLimitMiddleware(cfg.VoiceMaxBytes)

	pairingHandler := handler.NewPairingHandler(pairingService, issuer, hub)
	authHandler := handler.NewAuthHandler()
	messagesHandler := handler.NewMessagesHandler(messageService, hub)
	voiceHandler := handler.NewVoiceHandler(voiceStore)
	wsHandler := handler.NewWSHandler(hub)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		pingCtx, pingCancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		if err := db.Ping(pingCtx); err != nil {
			status = "degraded"
		}
		pingCancel()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status": status,
			"time":   time.Now().UnixMilli(),
		})
	})

	r.Get("/ws", wsHandler.Serve)
	r.Handle("/voice/*", voiceStore.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		// No claim exists yet on the pairing routes, so the limiter
		// buckets these by client IP.
		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware.Handler)
			r.Use(bodyLimitMiddleware.Handler)
			r.Post("/pairing/generate", pairingHandler.Generate)
			r.Post("/pairing/enter", pairingHandler.Enter)
		})

		// Auth runs before the limiter so authed requests are bucketed
		// by the claim's device id.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)
			r.Use(bodyLimitMiddleware.Handler)
			r.Post("/auth/verify", authHandler.Verify)
			r.Post("/pairing/unpair", pairingHandler.Unpair)
			r.Get("/room", pairingHandler.RoomInfo)
			r.Get("/messages/{roomID}", messagesHandler.List)
			r.Delete("/messages/{roomID}", messagesHandler.Clear)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)
			r.Use(voiceBodyLimitMiddleware.Handler)
			r.Post("/voice/upload", voiceHandler.Upload)
		})
	})

	cleanupJob := jobs.NewCleanupJob(pairingCodeRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
