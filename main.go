package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"moment-chat/internal/cache"
	"moment-chat/internal/config"
	"moment-chat/internal/db"
	"moment-chat/internal/handlers"
	"moment-chat/internal/logging"
	"moment-chat/internal/mongodb"
	"moment-chat/internal/observability"
	"moment-chat/internal/rabbitmq"
	"moment-chat/internal/registry"
	"moment-chat/internal/repositories"
	"moment-chat/internal/telemetry"
	"moment-chat/internal/ws"
)

const serviceName = "moment-chat"

func main() {
	cfg, err := config.Load(os.Getenv("MOMENTCHAT_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(ctx)

	database, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer database.Close()

	mongoClient, cols, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("failed to connect to mongo", zap.Error(err))
	}
	defer mongoClient.Disconnect(ctx)

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()
	kv := cache.New(rdb)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Environment, logger)

	reg := registry.New(rdb, logger, cfg.ConnTTL, cfg.OnlineTTL)

	userRepo := repositories.NewUserRepo(database)
	directRepo := repositories.NewDirectMessageRepo(cols.DirectMessages)
	groupMsgRepo := repositories.NewGroupMessageRepo(cols.GroupMessages)
	groupRepo := repositories.NewGroupRepo(cols.Groups)
	recentRepo := repositories.NewRecentChatRepo(cols.RecentChats)

	chatHandler := handlers.NewChatHandler(directRepo, recentRepo, reg, kv, logger)
	groupHandler := handlers.NewGroupHandler(groupRepo, groupMsgRepo, recentRepo, userRepo, kv, audit, logger)
	mediaHandler := handlers.NewMediaHandler(cfg.MediaDir, logger)

	chatWS := ws.NewChatWebSocketHandler(reg, directRepo, recentRepo, userRepo, publisher, logger)
	groupWS := ws.NewGroupWebSocketHandler(reg, groupRepo, groupMsgRepo, recentRepo, userRepo, publisher, logger)

	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/chat/history/:user_id/:target_id", chatHandler.History)
	router.GET("/chat/recent-chats/:user_id", chatHandler.RecentChats)
	router.POST("/chat/recent-chats", chatHandler.UpsertRecentChat)
	router.POST("/chat/recent-chats/:user_id/clear-unread/:target_id", chatHandler.ClearUnread)
	router.DELETE("/chat/message/:message_id", chatHandler.DeleteMessage)
	router.POST("/chat/message/read/:message_id", chatHandler.MarkMessageRead)
	router.GET("/chat/message/read/:message_id", chatHandler.MessageReadState)
	router.GET("/chat/online/:user_id", chatHandler.Online)
	router.POST("/chat/upload/media", mediaHandler.Upload)
	router.Static("/media", cfg.MediaDir)

	router.POST("/group/create", groupHandler.Create)
	router.GET("/group/get-joined-groups/:user_id", groupHandler.JoinedGroups)
	router.GET("/group/get-group-avatar/:group_id", groupHandler.Avatar)
	router.GET("/group/:group_id", groupHandler.Info)
	router.GET("/group-chat/history/:group_id", groupHandler.History)
	router.DELETE("/group-chat/message/:message_id", groupHandler.DeleteMessage)

	router.GET("/ws/chat/:user_id/:target_id", chatWS.Handle)
	router.GET("/ws/group/:group_id/:user_id", groupWS.Handle)

	logger.Info("server starting", zap.String("port", cfg.HTTPPort), zap.String("environment", cfg.Environment))
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
