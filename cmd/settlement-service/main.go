package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/bets"
	"github.com/radieske/scoreleague/internal/settlement-service/cache"
	httpapi "github.com/radieske/scoreleague/internal/settlement-service/http"
	"github.com/radieske/scoreleague/internal/settlement-service/leagues"
	"github.com/radieske/scoreleague/internal/settlement-service/ledger"
	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/producer"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
	"github.com/radieske/scoreleague/internal/settlement-service/settlement"
	"github.com/radieske/scoreleague/internal/settlement-service/ws"
	sharedcache "github.com/radieske/scoreleague/internal/shared/cache"
	"github.com/radieske/scoreleague/internal/shared/config"
	"github.com/radieske/scoreleague/internal/shared/logger"
	"github.com/radieske/scoreleague/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement-service"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store: memória (local) ou Postgres
	store, closeStore, err := repo.Open(ctx, cfg.StoreDriver, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("store open", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	// Hub WebSocket para atualizações ao vivo
	hub := ws.NewHub(log, func(r *http.Request) bool { return true })

	var sinks producer.Multi

	// Kafka producer: um tópico por evento
	if cfg.KafkaEnabled {
		writers, closers := producer.NewKafkaWriters(cfg.Brokers(), producer.Topics{
			BetPlaced:    cfg.TopicBetPlaced,
			BetSettled:   cfg.TopicBetSettled,
			MatchSettled: cfg.TopicMatchSettled,
			Leagues:      cfg.TopicLeagueEvents,
		})
		for _, w := range closers {
			defer w.Close()
		}
		sinks = append(sinks, producer.NewKafkaSink(writers))
		log.Info("kafka sink ready", zap.Strings("brokers", cfg.Brokers()))
	}

	// Redis: Pub/Sub para o hub (inclusive eventos do score-feed-worker) e cache do ranking
	var redisClient *redis.Client
	var lbCache httpapi.LeaderboardCache
	if cfg.RedisEnabled {
		redisClient, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr, sharedcache.Options{Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer redisClient.Close()
		sinks = append(sinks, producer.NewRedisSink(producer.NewRedisBroadcaster(redisClient), cfg.RedisPubSubChannel))
		ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub)
		lbCache = cache.New(redisClient)
		log.Info("redis connected", zap.String("channel", cfg.RedisPubSubChannel))
	} else {
		sinks = append(sinks, hub)
	}
	if !cfg.KafkaEnabled && !cfg.RedisEnabled {
		sinks = append(sinks, producer.LogSink{Log: log})
	}

	// Métricas Prometheus
	placed := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_bets_placed_total", Help: "apostas registradas"})
	settledBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_bets_settled_total", Help: "apostas liquidadas por resultado"}, []string{"status"})
	skippedBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_bets_skipped_total", Help: "apostas não liquidadas por motivo"}, []string{"reason"})
	matches := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_matches_settled_total", Help: "jogos liquidados"})
	prometheus.MustRegister(placed, settledBy, skippedBy, matches)

	led := ledger.New(log, store)
	betStore := bets.NewStore(store)
	orch := settlement.New(log, store, led, betStore, sinks)
	orch.Hooks = settlement.Hooks{
		OnBetPlaced:    func() { placed.Inc() },
		OnBetSettled:   func(s model.BetStatus) { settledBy.WithLabelValues(string(s)).Inc() },
		OnSkip:         func(reason string) { skippedBy.WithLabelValues(reason).Inc() },
		OnMatchSettled: func() { matches.Inc() },
	}

	api := &httpapi.API{
		Log:          log,
		Ledger:       led,
		Bets:         betStore,
		Matches:      store,
		Orchestrator: orch,
		Leagues:      leagues.NewService(log, store, sinks),
		Cache:        lbCache,
		WS:           hub.HandleWS,
	}

	// Servidor de métricas/health em porta separada
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		if p, ok := store.(interface{ Ping(context.Context) error }); ok {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
}
