package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/score-simulator/feed"
	"github.com/radieske/scoreleague/internal/shared/config"
	"github.com/radieske/scoreleague/internal/shared/logger"
	"github.com/radieske/scoreleague/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "score-simulator"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "score_simulator_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "score_simulator_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	prometheus.MustRegister(wsConnections, wsMessagesSent)

	h := feed.NewHub(log)
	h.OnConnect = func(delta int) { wsConnections.Add(float64(delta)) }
	h.OnMessageOut = func() { wsMessagesSent.Inc() }

	gen := feed.NewGenerator(cfg.SimMatches(), cfg.ServiceName, time.Now().UnixNano())

	// Encerra um jogo por tick até esgotar o catálogo
	go func() {
		ticker := time.NewTicker(cfg.SimInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			res, ok := gen.Next()
			if !ok {
				log.Info("catalog exhausted; no more results to send")
				return
			}
			log.Info("match finished",
				zap.String("match_id", res.MatchID),
				zap.Int("home", res.HomeGoals),
				zap.Int("away", res.AwayGoals),
				zap.Int("clients", h.Clients()),
			)
			h.Broadcast(res)
		}
	}()

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)
	defer msrv.Close()

	appMux := http.NewServeMux()
	appMux.HandleFunc("/ws", h.HandleWS)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           appMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("score simulator running",
			zap.String("addr", srv.Addr),
			zap.Strings("matches", cfg.SimMatches()),
			zap.Duration("interval", cfg.SimInterval),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("score simulator stopped")
}
