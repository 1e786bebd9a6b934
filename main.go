package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/auth"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/config"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/db"
	grpcserver "github.com/Skillin-Inc/SkillinMVP-sub001/internal/grpc"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/handlers"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/messaging"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/middleware"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/notify"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/observability"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/rabbitmq"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/repositories"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/telemetry"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("direct-messaging: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logs.GetLoggerFromString(cfg.LogLevel)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty, every token will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	database, err := db.Connect(ctx, cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	logger.Info("rabbitmq publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))

	store := repositories.NewMessageRepo(database)
	registry := messaging.NewRegistry()
	notifier := notify.NewOfflineNotifier(publisher, cfg.OfflineRoutingKey, cfg.OfflineQueueSize, logger)
	go func() { _ = notifier.Run(ctx) }()
	dispatcher := messaging.NewDispatcher(store, registry, notifier, logger)
	tracker := messaging.NewReadTracker(store, logger)
	conversations := messaging.NewConversations(store)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	wsHandler := ws.NewHandler(registry, dispatcher, tracker, verifier, publisher, ws.Options{
		SendBuffer:   cfg.WSSendBuffer,
		PingInterval: cfg.WSPingInterval,
		WriteTimeout: cfg.WSWriteTimeout,
	}, logger)
	conversationHandler := handlers.NewConversationHandler(conversations, tracker, dispatcher, audit)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", handlers.Healthz(database))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.Handle)
	conversationHandler.Register(router.Group("/", middleware.AuthMiddleware(verifier)))
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes, middleware.AuthMiddleware(verifier))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var healthServer *grpcserver.HealthServer
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		healthServer = grpcserver.NewHealthServer(logger)
		go func() {
			if err := healthServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		stop()
	}

	if healthServer != nil {
		healthServer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}

	// hijacked websocket connections are not tracked by the http server
	handles := registry.Drain()
	for _, handle := range handles {
		if client, ok := handle.(*ws.Client); ok {
			client.Close()
		}
	}
	logger.Info("shutdown complete", "closed_connections", len(handles))
	return nil
}
