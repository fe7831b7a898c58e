package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-apns-gateway/internal/platform/apns"
	"github.com/tinywideclouds/go-apns-gateway/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-apns-gateway/internal/storage/firestore"
	"github.com/tinywideclouds/go-apns-gateway/pkg/dispatch"

	"github.com/tinywideclouds/go-apns-gateway/notificationservice"
	"github.com/tinywideclouds/go-apns-gateway/notificationservice/config"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-apns-gateway")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("Firestore client failed", "err", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	// --- Token Store (Decorated) ---
	var tokenStore dispatch.TokenStore = fsStore.NewFirestoreStore(fsClient)
	logger.Info("TokenStore initialized", "type", "firestore")

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		deviceCache, err := cache.NewRedisDeviceCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer deviceCache.Close()
		tokenStore = cache.NewCachedTokenStore(tokenStore, deviceCache, 24*time.Hour)
		logger.Info("TokenStore upgraded", "type", "redis_cached_firestore")
	}

	// --- Auth ---
	identityURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityURL == "" {
		identityURL = "http://localhost:3000"
	}
	jwksURL, err := middleware.DiscoverAndValidateJWTConfig(identityURL, middleware.RSA256, logger)
	if err != nil {
		logger.Error("JWT config discovery failed", "url", identityURL, "err", err)
		os.Exit(1)
	}
	authMiddleware, err := middleware.NewJWKSAuthMiddleware(jwksURL, logger)
	if err != nil {
		logger.Error("Failed to create auth middleware", "err", err)
		os.Exit(1)
	}

	// --- APNs ---
	dispatcher, provider, err := apns.NewDispatcher(apnsConfig(cfg.APNS), logger)
	if err != nil {
		logger.Error("Failed to initialize APNs provider", "err", err)
		os.Exit(1)
	}
	logger.Info("APNs dispatcher enabled", "bundle_id", cfg.APNS.BundleID, "production", cfg.APNS.IsProduction())

	// --- Consumer & Service ---
	consumer, err := newIngestionConsumer(ctx, cfg, psClient, logger)
	if err != nil {
		logger.Error("Consumer creation failed", "err", err)
		os.Exit(1)
	}

	service, err := notificationservice.New(
		cfg,
		consumer,
		dispatcher,
		provider,
		tokenStore,
		authMiddleware,
		logger,
	)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...")
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "err", err)
		}
	}
}

func apnsConfig(c config.APNSConfig) apns.Config {
	return apns.Config{
		KeyID:                c.KeyID,
		TeamID:               c.TeamID,
		BundleID:             c.BundleID,
		P8KeyContent:         c.P8KeyContent,
		P8KeyPath:            c.P8KeyPath,
		Production:           c.IsProduction(),
		PingInterval:         c.PingInterval,
		RequestTimeout:       c.RequestTimeout,
		MaxConcurrentStreams: c.MaxConcurrentStreams,
	}
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.PubsubConsumerConfig.SubscriptionID, "subscriptions")
	topicID := convertPubsub(cfg.ProjectID, cfg.TopicID, "topics")
	dlt := convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:               sub,
		Topic:              topicID,
		AckDeadlineSeconds: 10,
		DeadLetterPolicy: &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     dlt,
			MaxDeliveryAttempts: 5,
		},
		EnableMessageOrdering: false,
	}
	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub %s: %w", sub, err)
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, logger,
	)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
