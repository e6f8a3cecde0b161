package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/internal/sales"
	"github.com/radieske/pix-webhook-hub/internal/shared/config"
	"github.com/radieske/pix-webhook-hub/internal/shared/db"
	"github.com/radieske/pix-webhook-hub/internal/shared/logger"
	"github.com/radieske/pix-webhook-hub/internal/shared/metrics"
	"github.com/radieske/pix-webhook-hub/internal/simulator"
)

// Simula um provedor PIX confirmando as vendas pendentes via webhook HTTP
// Fixture de testes, nunca parte do pipeline de ingestão
func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "webhook-simulator"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	secret := config.ProviderSecret(cfg.SimulatorProvider)
	if secret == "" {
		log.Fatal("provider secret not configured", zap.String("provider", cfg.SimulatorProvider))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	store := sales.NewPostgres(pg)

	for i := 0; i < cfg.SimulatorSeed; i++ {
		id, err := store.CreatePending(ctx, &sales.Sale{
			Provider:     cfg.SimulatorProvider,
			ResellerName: fmt.Sprintf("Revendedor %02d", i+1),
			TotalValue:   decimal.New(int64(500+i*137), -2),
		})
		if err != nil {
			log.Fatal("seed sale", zap.Error(err))
		}
		log.Debug("seeded pending sale", zap.String("sale_id", id))
	}

	sent := prometheus.NewCounter(prometheus.CounterOpts{Name: "simulator_webhooks_sent_total", Help: "webhooks simulados enviados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "simulator_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(sent, errorsBy)

	gen := &simulator.Generator{
		Log:      log,
		Sales:    store,
		Sender:   simulator.NewClient(cfg.WebhookURL),
		Provider: cfg.SimulatorProvider,
		Secret:   secret,
		OnSent:   func() { sent.Inc() },
		OnError:  func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("webhook simulator running",
		zap.String("provider", cfg.SimulatorProvider),
		zap.String("target", cfg.WebhookURL),
		zap.Duration("interval", cfg.SimulatorInterval),
	)
	gen.Run(ctx, cfg.SimulatorInterval)

	shutdownCtx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("webhook simulator stopped")
}
