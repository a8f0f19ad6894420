package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-food-orders/internal/config"
	"github.com/ariefcatur/go-food-orders/internal/logging"
	"github.com/ariefcatur/go-food-orders/internal/postgres"
	"github.com/ariefcatur/go-food-orders/internal/seed"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With(zap.String("service", "seed"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.PostgresDSN, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	s := &seed.Seeder{
		DB: db,
		Gen: &seed.Generator{
			Rand: rand.New(rand.NewSource(time.Now().UnixNano())),
			Now:  time.Now().UTC(),
			Opts: seed.Options{
				Users:     cfg.SeedUsers,
				Products:  cfg.SeedProducts,
				Orders:    cfg.SeedOrders,
				BatchSize: cfg.SeedBatchSize,
			},
		},
		Log: log,
	}
	start := time.Now()
	n, err := s.Run(ctx)
	if err != nil {
		log.Fatal("seed failed", zap.Int("inserted", n), zap.Error(err))
	}
	log.Info("seed complete", zap.Int("orders", n), zap.Duration("took", time.Since(start)))
}
