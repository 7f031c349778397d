package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/f1-wager-engine/internal/results"
	"github.com/radieske/f1-wager-engine/internal/settlement"
	srepo "github.com/radieske/f1-wager-engine/internal/settlement/repo"
	"github.com/radieske/f1-wager-engine/internal/shared/config"
	"github.com/radieske/f1-wager-engine/internal/shared/db"
	"github.com/radieske/f1-wager-engine/internal/shared/kafka"
	"github.com/radieske/f1-wager-engine/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka producer: publica race_settled quando a corrida fecha limpa
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceSettled)
	defer settledWriter.Close()

	season := cfg.ResultsSeason
	if season == 0 {
		season = time.Now().Year()
	}

	feed := results.NewClient(cfg.ResultsBaseURL, log)
	store := srepo.NewPostgres(pg)
	publ := settlement.NewKafkaPublisher(settledWriter)
	engine := settlement.New(log, store, feed, publ, season)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sem o histórico de corridas liquidadas o worker não sobe: processar o
	// feed sem essa memória pagaria corridas antigas de novo.
	if err := engine.Init(ctx); err != nil {
		log.Fatal("settlement init", zap.Error(err))
	}

	// Servidor interno: métricas, healthcheck e gatilho manual de settlement
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			hctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			if err := pg.PingContext(hctx); err != nil {
				http.Error(w, "pg", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/admin/settle", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if cfg.AdminToken == "" || r.Header.Get("X-Admin-Token") != cfg.AdminToken {
				http.Error(w, "admin token required", http.StatusUnauthorized)
				return
			}
			round, _ := strconv.Atoi(r.URL.Query().Get("round"))
			if round <= 0 {
				http.Error(w, "round required", http.StatusBadRequest)
				return
			}
			clean, err := engine.SettleRound(r.Context(), round)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			if !clean {
				http.Error(w, "settlement incomplete, wagers still pending", http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("settled"))
		})
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	log.Info("settlement-worker started",
		zap.Int("season", season),
		zap.Duration("interval", cfg.SettleInterval),
		zap.Duration("retry_interval", cfg.SettleRetryInterval),
	)

	sched := settlement.NewScheduler(log, engine, cfg.SettleInterval, cfg.SettleRetryInterval)
	sched.Run(ctx)

	log.Info("settlement-worker stopped")
}
