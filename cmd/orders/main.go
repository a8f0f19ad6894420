package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-food-orders/internal/accounts"
	"github.com/ariefcatur/go-food-orders/internal/auth"
	"github.com/ariefcatur/go-food-orders/internal/catalog"
	"github.com/ariefcatur/go-food-orders/internal/config"
	"github.com/ariefcatur/go-food-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-food-orders/internal/kafka"
	"github.com/ariefcatur/go-food-orders/internal/logging"
	"github.com/ariefcatur/go-food-orders/internal/orders"
	"github.com/ariefcatur/go-food-orders/internal/postgres"
	"github.com/ariefcatur/go-food-orders/internal/redisx"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With(zap.String("service", cfg.ServiceName))
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	prod.Start()

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	svc := &orders.Service{
		Repo:     &orders.Repo{DB: db},
		Catalog:  catalog.NewClient(upstream.NewClient("products", cfg.ProductsURL, httpClient)),
		Events:   prod,
		Redis:    rdb,
		Log:      log,
		Producer: cfg.ServiceName,
	}
	h := &httpx.OrdersHandler{
		Service:     svc,
		Verifier:    auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Users:       accounts.NewClient(upstream.NewClient("users", cfg.UsersURL, httpClient)),
		InternalKey: cfg.InternalKey,
		Log:         log,
	}
	router := httpx.NewRouter(log)
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	if err := httpx.Serve(ctx, srv, log); err != nil {
		log.Error("http server", zap.Error(err))
	}

	prod.Close()
	prod.WaitClosed()
}
