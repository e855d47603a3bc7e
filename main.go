package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chathive-service/internal/auth"
	"chathive-service/internal/config"
	"chathive-service/internal/db"
	"chathive-service/internal/handlers"
	"chathive-service/internal/middleware"
	"chathive-service/internal/observability"
	"chathive-service/internal/rabbitmq"
	"chathive-service/internal/repositories"
	"chathive-service/internal/telemetry"
	"chathive-service/internal/ws"
)

const serviceName = "chathive-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer auditPublisher.Close()
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "chat.message.audit", serviceName, cfg.Environment)

	hub := ws.NewHub()

	var fabric ws.Fabric
	if cfg.AMQPURL != "" {
		broadcastFabric, err := rabbitmq.NewBroadcastFabric(cfg.AMQPURL, cfg.BroadcastExchange, uuid.NewString())
		if err != nil {
			log.Fatalf("failed to connect broadcast fabric: %v", err)
		}
		defer broadcastFabric.Close()
		fabric = broadcastFabric
	}

	wsRouter := ws.NewRouter(hub, fabric)
	if broadcastFabric, ok := fabric.(*rabbitmq.BroadcastFabric); ok {
		if err := broadcastFabric.Consume(wsRouter.Deliver); err != nil {
			log.Fatalf("failed to start fabric consumer: %v", err)
		}
	}

	threadRepo := repositories.NewThreadRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)
	receiptRepo := repositories.NewReceiptRepo(database)

	verifier := auth.NewVerifier(cfg.JWTSecret)

	threadHandler := handlers.NewThreadHandler(threadRepo, messageRepo, receiptRepo, wsRouter)
	messageHandler := handlers.NewMessageHandler(threadRepo, messageRepo, reactionRepo, receiptRepo, wsRouter, auditEmitter)
	wsHandler := ws.NewHandler(hub, wsRouter, threadRepo, messageRepo, verifier)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/threads", authMiddleware, threadHandler.ListThreads)
	router.POST("/threads/group", authMiddleware, threadHandler.CreateGroup)
	router.GET("/threads/direct", authMiddleware, threadHandler.ResolveDirect)
	router.POST("/threads/direct", authMiddleware, threadHandler.StartDirect)
	router.GET("/threads/:thread_id", authMiddleware, threadHandler.GetThread)
	router.POST("/threads/:thread_id/read", authMiddleware, threadHandler.MarkRead)

	router.GET("/threads/:thread_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/threads/:thread_id/messages", authMiddleware, messageHandler.PostMessage)
	router.PATCH("/threads/:thread_id/messages/:message_id", authMiddleware, messageHandler.EditMessage)
	router.DELETE("/threads/:thread_id/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.GET("/threads/:thread_id/messages/:message_id/reactions", authMiddleware, messageHandler.ListReactions)
	router.POST("/threads/:thread_id/messages/:message_id/reactions", authMiddleware, messageHandler.AddReaction)
	router.DELETE("/threads/:thread_id/messages/:message_id/reactions/:emoji", authMiddleware, messageHandler.RemoveReaction)
	router.GET("/threads/:thread_id/messages/:message_id/receipts", authMiddleware, messageHandler.ListReceipts)
	router.POST("/threads/:thread_id/messages/:message_id/delivered", authMiddleware, messageHandler.MarkDelivered)

	router.GET("/ws", wsHandler.Handle)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
