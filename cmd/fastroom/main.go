package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/john0isaac/fastroom/internal/auth"
	"github.com/john0isaac/fastroom/internal/bus"
	"github.com/john0isaac/fastroom/internal/config"
	"github.com/john0isaac/fastroom/internal/database"
	"github.com/john0isaac/fastroom/internal/handler"
	"github.com/john0isaac/fastroom/internal/hub"
	"github.com/john0isaac/fastroom/internal/kafka"
	"github.com/john0isaac/fastroom/internal/presence"
	"github.com/john0isaac/fastroom/internal/repository"
	"github.com/john0isaac/fastroom/internal/service"
	"github.com/john0isaac/fastroom/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()

	serverID := cfg.ServerID
	if serverID == "" {
		serverID = randomServerID()
	}
	logger.Info().
		Str(log.FieldServer, serverID).
		Int("port", cfg.Server.Port).
		Msg("starting fastroom")

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	store, err := presence.NewRedisStore(cfg.Redis, cfg.Chat.PresencePrefix, cfg.Chat.HeartbeatTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect presence store")
	}
	defer store.Close()

	wsHub := hub.New(store, cfg.Chat.HeartbeatInterval)

	broadcastBus, err := bus.NewRedisBus(cfg.Redis, cfg.Chat.ChannelPrefix, serverID, wsHub.DeliverLocal)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect broadcast bus")
	}
	defer broadcastBus.Close()
	wsHub.SetBus(broadcastBus)

	var archive kafka.ArchiveProducer = kafka.NoopProducer{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewConfluentProducer(cfg.Kafka)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		defer producer.Close()
		archive = producer
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("chat archive enabled")
	}

	repo := repository.NewGormRepository(db)
	jwtManager := auth.NewJWTManager(cfg.Auth)
	authSvc := auth.NewService(repo, repo, jwtManager)

	chatSvc := service.NewChatService(
		wsHub, repo, store, archive,
		serverID, cfg.Chat.HistoryLimit, cfg.Chat.HeartbeatInterval,
	)

	authHandler := handler.NewAuthHandler(authSvc)
	roomHandler := handler.NewRoomHandler(repo, wsHub, store)
	wsHandler := handler.NewWSHandler(chatSvc, authSvc, cfg.WebSocket)

	router := handler.NewRouter(authSvc, authHandler, roomHandler, wsHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Drop this process's presence records so peers see departures
	// immediately instead of after TTL expiry.
	wsHub.Shutdown(shutdownCtx)

	logger.Info().Msg("stopped")
}

func randomServerID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("srv-%d", os.Getpid())
	}
	return hex.EncodeToString(b)
}
