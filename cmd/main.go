package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mansoorceksport/generic-avatar/internal/config"
	"github.com/mansoorceksport/generic-avatar/internal/i18n"
	"github.com/mansoorceksport/generic-avatar/internal/logging"
	"github.com/mansoorceksport/generic-avatar/internal/repository"
	"github.com/mansoorceksport/generic-avatar/internal/server"
	"github.com/mansoorceksport/generic-avatar/internal/service"
	"github.com/mansoorceksport/generic-avatar/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	log.Println("Starting Generic Avatar Service...")

	ctx := context.Background()

	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		OTLPHeaders:    telemetry.BasicAuthHeaders(cfg.OTEL.InstanceID, cfg.OTEL.Token),
		Enabled:        cfg.OTEL.Enabled,
	})
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down OpenTelemetry: %v", err)
		}
	}()

	// Connect to MongoDB with OpenTelemetry instrumentation
	ctxMongo, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
	if cfg.OTEL.Enabled {
		mongoOpts.SetMonitor(otelmongo.NewMonitor())
	}

	mongoClient, err := mongo.Connect(ctxMongo, mongoOpts)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	if err := mongoClient.Ping(ctxMongo, nil); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}
	log.Println("✓ MongoDB connected")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("✓ Redis connected")

	imageStore, err := repository.NewSeaweedS3Repository(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("Failed to initialize S3 repository: %v", err)
	}
	log.Printf("✓ Object storage ready (bucket: %s)", cfg.S3.Bucket)

	translator, err := i18n.NewTranslator()
	if err != nil {
		log.Fatalf("Failed to build message catalog: %v", err)
	}

	manager := service.NewGenericAvatarManager(
		repository.NewMongoAvatarRepository(mongoClient.Database(cfg.MongoDB.Database)),
		imageStore,
		repository.NewRedisCacheRepository(redisClient),
		cfg.Avatar.Types,
		cfg.Avatar.CacheTTL,
	).WithLogger(logger)
	gateway := service.NewAvatarGateway(manager, logging.WithApp(logger, "core"))

	app := server.NewApp(server.AppDependencies{
		Config:      cfg,
		Gateway:     gateway,
		Translator:  translator,
		RedisClient: redisClient,
		Logger:      logger,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down gracefully...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Server starting on port %s (avatar types: %v)", cfg.Server.Port, cfg.Avatar.Types)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
