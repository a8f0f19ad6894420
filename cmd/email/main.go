package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-food-orders/internal/config"
	"github.com/ariefcatur/go-food-orders/internal/email"
	"github.com/ariefcatur/go-food-orders/internal/httpx"
	"github.com/ariefcatur/go-food-orders/internal/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With(zap.String("service", "email"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := &email.Service{
		From:          cfg.FromEmail,
		OrderLinkBase: cfg.OrderLinkBase,
		Log:           log,
	}
	if email.Configured(cfg.SendGridAPIKey) {
		svc.Sender = email.NewSendGrid(cfg.SendGridAPIKey, cfg.SendGridURL, &http.Client{Timeout: cfg.UpstreamTimeout})
	} else {
		log.Warn("SENDGRID_API_KEY not configured, sends are simulated")
	}

	router := httpx.NewRouter(log)
	(&email.Handler{Service: svc, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	if err := httpx.Serve(ctx, srv, log); err != nil {
		log.Error("http server", zap.Error(err))
	}
}
