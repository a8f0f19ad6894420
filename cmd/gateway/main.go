package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-food-orders/internal/config"
	"github.com/ariefcatur/go-food-orders/internal/gateway"
	"github.com/ariefcatur/go-food-orders/internal/httpx"
	"github.com/ariefcatur/go-food-orders/internal/logging"
	"github.com/ariefcatur/go-food-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With(zap.String("service", "gateway"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis not reachable yet", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	handler, err := gateway.NewRouter(gateway.Deps{
		UsersURL:         cfg.UsersURL,
		ProductsURL:      cfg.ProductsURL,
		OrdersURL:        cfg.OrdersURL,
		HTTP:             &http.Client{Timeout: cfg.UpstreamTimeout},
		Redis:            rdb,
		Log:              log,
		CORSAllowOrigins: cfg.CORSAllowOrig,
	})
	if err != nil {
		log.Fatal("gateway config", zap.Error(err))
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	if err := httpx.Serve(ctx, srv, log); err != nil {
		log.Error("http server", zap.Error(err))
	}
}
