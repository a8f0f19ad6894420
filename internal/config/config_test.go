package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8083", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, time.Second, cfg.PaymentMinDelay)
	assert.Equal(t, 3*time.Second, cfg.PaymentMaxDelay)
	assert.InDelta(t, 0.9, cfg.PaymentSuccessRate, 1e-9)
	assert.Equal(t, 4, cfg.NotifierWorkers)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("UPSTREAM_TIMEOUT", "2s")
	t.Setenv("PAYMENT_SUCCESS_RATE", "0.5")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.UpstreamTimeout)
	assert.InDelta(t, 0.5, cfg.PaymentSuccessRate, 1e-9)
}
