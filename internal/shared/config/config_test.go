package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ctopics "github.com/radieske/scoreleague/pkg/contracts/topics"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-service")

	cfg := Load()
	require.Equal(t, "local", cfg.Env)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, "8084", cfg.HTTPPort)
	require.Equal(t, "9100", cfg.MetricsPort)
	require.Equal(t, ctopics.BetSettled, cfg.TopicBetSettled)
	require.Equal(t, ctopics.LeagueEvents, cfg.TopicLeagueEvents)
	require.Equal(t, 3, cfg.FeedMaxRetries)
	require.True(t, cfg.KafkaEnabled)
	require.True(t, cfg.RedisEnabled)
	require.Equal(t, 10*time.Second, cfg.SimInterval)
	require.Len(t, cfg.SimMatches(), 4)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "score-feed-worker")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("METRICS_PORT_FEED", "9999")
	t.Setenv("FEED_MAX_RETRIES", "5")
	t.Setenv("REDIS_ENABLED", "false")

	cfg := Load()
	require.Equal(t, "postgres", cfg.StoreDriver)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	require.Equal(t, "9999", cfg.MetricsPort)
	require.Equal(t, "", cfg.HTTPPort)
	require.Equal(t, 5, cfg.FeedMaxRetries)
	require.False(t, cfg.RedisEnabled)
}

func TestLoadGatewayPorts(t *testing.T) {
	t.Setenv("SERVICE_NAME", "api-gateway")
	t.Setenv("SETTLEMENT_URL", "http://settlement:8084")

	cfg := Load()
	require.Equal(t, "8000", cfg.HTTPPort)
	require.Equal(t, "http://settlement:8084", cfg.SettlementURL)
}
