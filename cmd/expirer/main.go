package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/logger"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
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

	// expiring a credit changes the virtual balance, so cached balances are refreshed
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	r := repo.NewRepository(gdb, rdb, nil, log).
		WithTimeouts(cfg.Ledger.TxTimeout, cfg.Ledger.LockTimeout).
		WithCacheTTL(cfg.Redis.TTL)
	svc := service.NewWalletService(r, cfg.Ledger, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.Expirer.Interval)
	defer ticker.Stop()

	log.Infow("wallet-expirer started", "interval", cfg.Expirer.Interval, "batch", cfg.Expirer.BatchSize)
	for {
		select {
		case <-ctx.Done():
			log.Info("wallet-expirer stopped")
			return
		case <-ticker.C:
			rep, err := svc.ExpireCredits(ctx, cfg.Expirer.BatchSize)
			if err != nil {
				log.Errorf("expire credits: %v", err)
				continue
			}
			if rep.Credits > 0 || rep.Failed > 0 {
				log.Infow("expiry sweep", "wallets", rep.Wallets, "credits", rep.Credits,
					"forfeited", rep.Forfeited, "failed", rep.Failed)
			}
		}
	}
}
