package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/api"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/config"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/content"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/feed"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/handlers"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/identity"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/registration"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/riddle"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the data store: PostgreSQL in production, SQLite fallback
	// for development.
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		db = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		db = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
	}
	defer db.Close()

	// Initialize Redis store
	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	logger.Info().Msg("connected to Redis")

	// Load static game content
	gameContent, err := content.Load(cfg.ContentPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading game content failed")
	}

	// Wire the flows with explicitly injected clients
	provider := identity.NewProvider(db, redisStore, cfg.SessionSecret, cfg.SessionTTL)
	registrar := registration.NewRegistrar(db, provider, logger)
	feedSvc := feed.NewService(redisStore, cfg.MessageTTL, logger)
	riddles := riddle.NewPool(gameContent.Riddles)

	h := handlers.NewHandler(db, redisStore, feedSvc, registrar, provider, riddles, gameContent, logger)
	router := api.NewRouter(logger, h, provider, db)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE feed stream must outlive a fixed write window
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting Sekretos server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
