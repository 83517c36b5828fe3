package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/events"
	"github.com/richardliu001/wallet-ledger/internal/logger"
	"github.com/richardliu001/wallet-ledger/internal/metrics"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/segmentio/kafka-go"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "internal/config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.FromEnv()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}
	defer kw.Close()

	// the poller never touches balances, so it runs without redis
	r := repo.NewRepository(gdb, nil, kw, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Kafka.PollInterval)
	defer ticker.Stop()

	log.Infow("wallet-poller started", "interval", cfg.Kafka.PollInterval, "batch", cfg.Kafka.BatchSize)
	for {
		select {
		case <-ctx.Done():
			log.Info("wallet-poller stopped")
			return
		case <-ticker.C:
			drain(ctx, r, cfg.Kafka.BatchSize, log)
		}
	}
}

// drain publishes one batch in id order. It stops at the first failure so a
// later event of the same wallet is never sent ahead of an earlier one.
func drain(ctx context.Context, r *repo.Repository, batch int, log *zap.SugaredLogger) {
	evts, err := r.PollOutbox(ctx, batch)
	if err != nil {
		log.Errorf("poll outbox: %v", err)
		return
	}
	for _, evt := range evts {
		if _, err := events.Decode(evt.EventType, evt.Payload); err != nil {
			// undecodable rows would block the queue forever; ship them anyway
			log.Warnw("outbox payload does not decode", "id", evt.ID, "type", evt.EventType, "err", err)
		}
		if err := r.PublishEvent(ctx, evt); err != nil {
			metrics.RecordOutbox("error")
			log.Errorf("publish id=%d: %v", evt.ID, err)
			return
		}
		if err := r.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			metrics.RecordOutbox("error")
			log.Errorf("mark processed id=%d: %v", evt.ID, err)
			return
		}
		metrics.RecordOutbox("ok")
		log.Debugf("event %d sent", evt.ID)
	}
}
