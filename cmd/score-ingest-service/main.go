package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/score-ingest/publisher"
	"github.com/radieske/scoreleague/internal/score-ingest/service"
	"github.com/radieske/scoreleague/internal/shared/config"
	"github.com/radieske/scoreleague/internal/shared/logger"
	"github.com/radieske/scoreleague/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "score-ingest-service"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Kafka Publisher
	pub, err := publisher.NewKafkaPublisher(cfg.Brokers(), cfg.TopicMatchResults, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer pub.Close()

	received := prometheus.NewCounter(prometheus.CounterOpts{Name: "score_ingest_messages_received_total", Help: "placares recebidos do fornecedor"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "score_ingest_messages_published_total", Help: "placares publicados no Kafka"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "score_ingest_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(received, published, errorsBy)

	// WS Client
	wsClient := &service.WSClient{
		URL:         cfg.ScoreProviderWSURL,
		Log:         log,
		Publisher:   pub,
		OnReceived:  func() { received.Inc() },
		OnPublished: func() { published.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)
	defer msrv.Close()

	log.Info("score-ingest-service started",
		zap.String("provider", cfg.ScoreProviderWSURL),
		zap.String("topic", cfg.TopicMatchResults),
	)
	wsClient.Start(ctx)
	log.Info("shutdown signal received")
}
