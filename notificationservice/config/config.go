package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// APNSConfig holds the provider credentials and session settings.
type APNSConfig struct {
	KeyID        string
	TeamID       string
	BundleID     string
	P8KeyContent string
	P8KeyPath    string

	// Production is nil until resolved; after UpdateConfigWithEnvOverrides it is always set.
	Production           *bool
	PingInterval         time.Duration
	RequestTimeout       time.Duration
	MaxConcurrentStreams int
}

// IsProduction reports the resolved environment flag.
func (c APNSConfig) IsProduction() bool {
	return c.Production != nil && *c.Production
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	APNS       APNSConfig

	TopicID              string
	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// APNs Overrides
	if err := applyAPNSOverrides(&cfg.APNS, logger); err != nil {
		return nil, err
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.APNS.KeyID == "" || cfg.APNS.TeamID == "" || cfg.APNS.BundleID == "" {
		return nil, fmt.Errorf("apns key_id, team_id and bundle_id are required (set via YAML or APNS_* env vars)")
	}
	if cfg.APNS.P8KeyContent == "" && cfg.APNS.P8KeyPath == "" {
		return nil, fmt.Errorf("apns signing key is required (set APNS_P8_KEY or APNS_P8_KEY_PATH)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully", "apns_production", cfg.APNS.IsProduction())
	return cfg, nil
}

func applyAPNSOverrides(c *APNSConfig, logger *slog.Logger) error {
	strOverrides := []struct {
		env string
		dst *string
	}{
		{"APNS_KEY_ID", &c.KeyID},
		{"APNS_TEAM_ID", &c.TeamID},
		{"APNS_BUNDLE_ID", &c.BundleID},
		{"APNS_P8_KEY", &c.P8KeyContent},
		{"APNS_P8_KEY_PATH", &c.P8KeyPath},
	}
	for _, o := range strOverrides {
		if val := os.Getenv(o.env); val != "" {
			logger.Debug("Overriding config value", "key", o.env, "source", "env")
			*o.dst = val
		}
	}

	if val := os.Getenv("APNS_PRODUCTION"); val != "" {
		production, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("APNS_PRODUCTION must be a boolean: %w", err)
		}
		c.Production = &production
	}
	if c.Production == nil {
		// Neither YAML nor APNS_PRODUCTION chose an authority; fall back to the deployment mode.
		production := strings.EqualFold(os.Getenv("DEPLOY_ENV"), "production")
		c.Production = &production
	}

	if val := os.Getenv("APNS_PING_INTERVAL_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			c.PingInterval = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("APNS_REQUEST_TIMEOUT_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			c.RequestTimeout = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("APNS_MAX_CONCURRENT_STREAMS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxConcurrentStreams = n
		}
	}
	return nil
}
