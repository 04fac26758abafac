package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/score-feed/consumer"
	"github.com/radieske/scoreleague/internal/settlement-service/bets"
	"github.com/radieske/scoreleague/internal/settlement-service/ledger"
	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/producer"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
	"github.com/radieske/scoreleague/internal/settlement-service/settlement"
	sharedcache "github.com/radieske/scoreleague/internal/shared/cache"
	"github.com/radieske/scoreleague/internal/shared/config"
	"github.com/radieske/scoreleague/internal/shared/kafka"
	"github.com/radieske/scoreleague/internal/shared/logger"
	"github.com/radieske/scoreleague/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "score-feed-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// O worker compartilha o store com o settlement-service; em memória só serve para testes locais
	store, closeStore, err := repo.Open(ctx, cfg.StoreDriver, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("store open", zap.Error(err))
	}
	defer closeStore()
	if cfg.StoreDriver != "postgres" {
		log.Warn("score-feed-worker running with in-memory store; state is not shared")
	}

	brokers := cfg.Brokers()

	// Kafka consumer: consome placares finais (consumer group score-feed)
	reader := kafka.NewReader(brokers, cfg.TopicMatchResults, "score-feed")
	defer reader.Close()

	var dlqWriter consumer.Writer
	if cfg.TopicMatchResultsDLQ != "" {
		w := kafka.NewWriter(brokers, cfg.TopicMatchResultsDLQ)
		defer w.Close()
		dlqWriter = w
	}

	// Eventos de liquidação: Kafka + Redis Pub/Sub (hub WebSocket do settlement-service)
	writers, closers := producer.NewKafkaWriters(brokers, producer.Topics{
		BetSettled:   cfg.TopicBetSettled,
		MatchSettled: cfg.TopicMatchSettled,
	})
	for _, w := range closers {
		defer w.Close()
	}
	sinks := producer.Multi{producer.NewKafkaSink(writers)}

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr, sharedcache.Options{Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer redisClient.Close()
		sinks = append(sinks, producer.NewRedisSink(producer.NewRedisBroadcaster(redisClient), cfg.RedisPubSubChannel))
	}

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "score_feed_messages_consumed_total", Help: "mensagens consumidas"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "score_feed_matches_settled_total", Help: "placares aplicados"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "score_feed_skipped_total", Help: "mensagens ignoradas por motivo"}, []string{"reason"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "score_feed_errors_total", Help: "erros por estágio"}, []string{"stage"})
	betsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "score_feed_bets_settled_total", Help: "apostas liquidadas por resultado"}, []string{"status"})
	prometheus.MustRegister(consumed, applied, skipped, errorsBy, betsSettled)

	led := ledger.New(log, store)
	orch := settlement.New(log, store, led, bets.NewStore(store), sinks)
	orch.Hooks = settlement.Hooks{
		OnBetSettled: func(s model.BetStatus) { betsSettled.WithLabelValues(string(s)).Inc() },
		OnSkip:       func(reason string) { skipped.WithLabelValues(reason).Inc() },
	}

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		DLQ:        dlqWriter,
		Settler:    orch,
		MaxRetries: cfg.FeedMaxRetries,
		Backoff:    300 * time.Millisecond,
		OnConsumed: func() { consumed.Inc() },
		OnSettled:  func() { applied.Inc() },
		OnSkipped:  func(reason string) { skipped.WithLabelValues(reason).Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		if p, ok := store.(interface{ Ping(context.Context) error }); ok {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if redisClient != nil {
			return redisClient.Ping(ctx).Err()
		}
		return nil
	})
	defer msrv.Close()

	log.Info("score-feed-worker started",
		zap.String("consume", cfg.TopicMatchResults),
		zap.String("dlq", cfg.TopicMatchResultsDLQ),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("score-feed-worker stopped")
}
