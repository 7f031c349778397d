package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/f1-wager-engine/internal/ledger"
	"github.com/radieske/f1-wager-engine/internal/odds"
	"github.com/radieske/f1-wager-engine/internal/race"
	"github.com/radieske/f1-wager-engine/internal/shared/cache"
	"github.com/radieske/f1-wager-engine/internal/shared/config"
	"github.com/radieske/f1-wager-engine/internal/shared/db"
	"github.com/radieske/f1-wager-engine/internal/shared/kafka"
	"github.com/radieske/f1-wager-engine/internal/shared/logger"
	"github.com/radieske/f1-wager-engine/internal/shared/metrics"
	"github.com/radieske/f1-wager-engine/internal/wager"
	whttp "github.com/radieske/f1-wager-engine/internal/wager/http"
	wrepo "github.com/radieske/f1-wager-engine/internal/wager/repo"
)

// TTL dos pools pari-mutuel no Redis. Cobre a janela de apostas com folga;
// pool expirado só degrada a odd de exibição para o baseline.
const poolTTL = 7 * 24 * time.Hour

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers
	placedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced)
	defer placedWriter.Close()
	cancelledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerCancelled)
	defer cancelledWriter.Close()

	// Kafka consumer: race_settled dispara a limpeza dos pools de odds ao vivo
	settledReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRaceSettled, "wager-service-pools")
	defer settledReader.Close()

	// deps
	calendar := race.NewPostgres(pg)
	if err := calendar.Seed(context.Background(), race.DefaultSchedule()); err != nil {
		log.Warn("race calendar seed failed", zap.Error(err))
	}

	ledgerRepo := ledger.NewPostgres(pg)
	store := wrepo.NewPostgres(pg)
	pools := odds.NewPoolCache(rdb, poolTTL)
	publ := wager.NewKafkaPublisher(placedWriter, cancelledWriter)
	svc := wager.NewService(log, store, calendar, pools, publ)

	go wager.NewSettledConsumer(log, settledReader, pools).Run(context.Background())

	// HTTP público
	api := whttp.NewServer(log, svc, ledgerRepo, cfg.AdminToken)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("wager-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
