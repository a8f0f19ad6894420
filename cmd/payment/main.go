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
	"github.com/ariefcatur/go-food-orders/internal/payment"
	"github.com/ariefcatur/go-food-orders/internal/upstream"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat).With(zap.String("service", "payment"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	var updater payment.OrderUpdater
	if cfg.OrdersURL != "" {
		updater = payment.NewOrdersClient(upstream.NewClient("orders", cfg.OrdersURL, httpClient), cfg.InternalKey)
	}
	var mailer payment.Mailer
	if cfg.EmailFuncURL != "" {
		mailer = email.NewClient(cfg.EmailFuncURL, httpClient)
	} else {
		log.Warn("EMAIL_FUNCTION_URL not set, confirmations disabled")
	}

	proc := payment.NewProcessor(payment.Options{
		MinDelay:    cfg.PaymentMinDelay,
		MaxDelay:    cfg.PaymentMaxDelay,
		SuccessRate: cfg.PaymentSuccessRate,
		ReceiptBase: cfg.ReceiptBaseURL,
	}, updater, mailer, log)

	router := httpx.NewRouter(log)
	(&payment.Handler{Processor: proc, Log: log}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	if err := httpx.Serve(ctx, srv, log); err != nil {
		log.Error("http server", zap.Error(err))
	}
	proc.Wait()
}
