package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlAPNSConfig struct {
	KeyID     string `yaml:"key_id"`
	TeamID    string `yaml:"team_id"`
	BundleID  string `yaml:"bundle_id"`
	P8KeyPath string `yaml:"p8_key_path"`
	// Production is left unset to defer to the deployment mode.
	Production            *bool `yaml:"production"`
	PingIntervalSeconds   int   `yaml:"ping_interval_seconds"`
	RequestTimeoutSeconds int   `yaml:"request_timeout_seconds"`
	MaxConcurrentStreams  int   `yaml:"max_concurrent_streams"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string          `yaml:"project_id"`
	ListenAddr             string          `yaml:"listen_addr"`
	TopicID                string          `yaml:"topic_id"`
	SubscriptionID         string          `yaml:"subscription_id"`
	SubscriptionDLQTopicID string          `yaml:"subscription_dlq_topic_id"`
	CorsConfig             YamlCorsConfig  `yaml:"cors"`
	RedisConfig            YamlRedisConfig `yaml:"redis"`
	APNSConfig             YamlAPNSConfig  `yaml:"apns"`
	NumPipelineWorkers     int             `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		APNS: APNSConfig{
			KeyID:                baseCfg.APNSConfig.KeyID,
			TeamID:               baseCfg.APNSConfig.TeamID,
			BundleID:             baseCfg.APNSConfig.BundleID,
			P8KeyPath:            baseCfg.APNSConfig.P8KeyPath,
			Production:           baseCfg.APNSConfig.Production,
			PingInterval:         time.Duration(baseCfg.APNSConfig.PingIntervalSeconds) * time.Second,
			RequestTimeout:       time.Duration(baseCfg.APNSConfig.RequestTimeoutSeconds) * time.Second,
			MaxConcurrentStreams: baseCfg.APNSConfig.MaxConcurrentStreams,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"apns_bundle_id", cfg.APNS.BundleID,
	)

	return cfg, nil
}
