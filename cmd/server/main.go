package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/internal/core/services"
	httphandlers "vlsnet/internal/handlers/http"
	"vlsnet/internal/infrastructure/chat"
	"vlsnet/internal/infrastructure/middleware"
	"vlsnet/internal/infrastructure/monitoring"
	"vlsnet/internal/infrastructure/repositories"
	"vlsnet/pkg/config"
	"vlsnet/pkg/logger"
	"vlsnet/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "vlsnet",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialise tracing", "error", err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	repoFactory := repositories.NewRepositoryFactory(startCtx, cfg, log)
	startCancel()

	// Monitoring
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var registry *chat.Registry
	collector := monitoring.NewPrometheusCollector(promRegistry, func() int { return registry.StreamCount() })
	registry = chat.NewRegistry(chat.DefaultShardCount, func(streamID domain.StreamID, sub ports.Subscriber, err error) {
		collector.SubscriberPruned()
		log.Debugw("pruned chat subscriber", "stream_id", streamID, "conn_id", sub.ID(), "error", err)
	})

	// Services
	kv := repoFactory.KeyValue()
	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, kv)
	lockout := services.NewLockoutService(kv, services.LockoutPolicy{
		MaxFailedAttempts: cfg.Auth.Lockout.MaxFailedAttempts,
		Window:            cfg.Auth.Lockout.Window,
		Duration:          cfg.Auth.Lockout.Duration,
	})
	authService := services.NewAuthService(
		repoFactory.Identities(),
		services.NewCredentialService(cfg.Auth.BcryptCost),
		tokens,
		lockout,
		collector,
		log,
	)
	var streamService ports.StreamService = services.NewStreamService(repoFactory.Streams(), services.StreamURLConfig{
		IngestBaseURL:   cfg.Streams.IngestBaseURL,
		PlaybackBaseURL: cfg.Streams.PlaybackBaseURL,
	}, log)
	if cfg.Streams.CacheTTL > 0 {
		cached := services.NewCachedStreamService(streamService, cfg.Streams.CacheTTL)
		defer cached.Stop()
		streamService = cached
	}
	moderationService := services.NewModerationService(repoFactory.Moderation(), repoFactory.Streams(), log)
	chatService := services.NewChatService(repoFactory.ChatMessages(), moderationService, registry, collector, log, services.ChatConfig{
		MaxMessageRunes: cfg.Chat.MaxMessageRunes,
		HistoryLimit:    cfg.Chat.HistoryLimit,
	})

	wsCfg := chat.ServerConfig{
		PingInterval:    cfg.Chat.PingInterval,
		PongTimeout:     cfg.Chat.PongTimeout,
		WriteTimeout:    cfg.Chat.WriteTimeout,
		SendBuffer:      cfg.Chat.SendBuffer,
		MaxMessageBytes: cfg.Chat.MaxFrameBytes,
		AllowedOrigins:  cfg.Chat.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		wsCfg.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		wsCfg.Burst = cfg.RateLimiting.WebSocket.Burst
	}
	wsServer := chat.NewWebSocketServer(tokens, streamService, moderationService, chatService, registry, collector, wsCfg, log)

	// Health checks
	checker := monitoring.NewHealthChecker()
	checker.AddRepositoryCheck(repoFactory, 30*time.Second, 5*time.Second)
	checker.AddKeyValueCheck(kv, 30*time.Second, 2*time.Second)
	checker.AddChatCapacityCheck(wsServer.ConnectionCount, cfg.Chat.MaxConnections, 30*time.Second)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	checker.StartBackgroundChecks(bgCtx)

	// HTTP
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	var gatherer prometheus.Gatherer
	if cfg.Monitoring.PrometheusEnabled {
		gatherer = promRegistry
		log.Info("Prometheus metrics enabled")
	}
	httphandlers.NewHealthHandler(checker, wsServer, registry.StreamCount, gatherer).SetupRoutes(router)
	httphandlers.NewAuthHandler(authService, tokens).SetupRoutes(router)
	httphandlers.NewStreamHandler(streamService, tokens).SetupRoutes(router)
	httphandlers.NewChatHandler(chatService, moderationService, streamService, tokens).SetupRoutes(router)
	router.GET("/ws/streams/:id/chat", wsServer.HandleChat)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting vlsnet server",
			"address", cfg.Server.Address,
			"postgres", repoFactory.UsingPostgres(),
			"redis", repoFactory.UsingRedis(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down vlsnet server...")
	bgCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// hijacked websocket connections are not tracked by srv.Shutdown
	wsServer.Shutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repositories", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}

	log.Info("vlsnet server stopped")
}
