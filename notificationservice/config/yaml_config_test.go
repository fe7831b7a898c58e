package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-apns-gateway/notificationservice/config"
	"gopkg.in/yaml.v3"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		raw := []byte(`
project_id: yaml-project
listen_addr: ":9000"
topic_id: yaml-topic
subscription_id: yaml-subscription
subscription_dlq_topic_id: yaml-dlq
num_pipeline_workers: 5
cors:
  allowed_origins: ["http://yaml.com"]
  role: editor
apns:
  key_id: ABC123
  team_id: TEAM99
  bundle_id: com.yaml.app
  p8_key_path: /secrets/AuthKey.p8
  production: true
  ping_interval_seconds: 120
  request_timeout_seconds: 10
  max_concurrent_streams: 50
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		// 1. Direct Field Mapping
		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)

		// 2. CORS
		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		// 3. APNs
		assert.Equal(t, "ABC123", cfg.APNS.KeyID)
		assert.Equal(t, "TEAM99", cfg.APNS.TeamID)
		assert.Equal(t, "com.yaml.app", cfg.APNS.BundleID)
		assert.Equal(t, "/secrets/AuthKey.p8", cfg.APNS.P8KeyPath)
		assert.True(t, cfg.APNS.IsProduction())
		assert.Equal(t, 2*time.Minute, cfg.APNS.PingInterval)
		assert.Equal(t, 10*time.Second, cfg.APNS.RequestTimeout)
		assert.Equal(t, 50, cfg.APNS.MaxConcurrentStreams)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.Nil(t, cfg.APNS.Production) // resolved later from the environment
		assert.Zero(t, cfg.APNS.PingInterval)
	})
}
