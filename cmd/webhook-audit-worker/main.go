package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/internal/audit/consumer"
	"github.com/radieske/pix-webhook-hub/internal/audit/repository"
	"github.com/radieske/pix-webhook-hub/internal/shared/config"
	"github.com/radieske/pix-webhook-hub/internal/shared/db"
	"github.com/radieske/pix-webhook-hub/internal/shared/kafka"
	"github.com/radieske/pix-webhook-hub/internal/shared/logger"
	"github.com/radieske/pix-webhook-hub/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "webhook-audit-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := repository.EnsureSchema(ctx, pg); err != nil {
			log.Warn("audit schema", zap.Error(err))
		}
	}

	// consumer group próprio: a auditoria não concorre com outros leitores do tópico
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPaymentWebhooks, "webhook-audit")
	defer reader.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "webhook_audit_messages_consumed_total", Help: "mensagens consumidas"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "webhook_audit_db_writes_total", Help: "linhas gravadas em webhook_audit"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "webhook_audit_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, persist, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repo:       repository.NewPostgresRepo(pg),
		OnConsumed: func() { consumed.Inc() },
		OnPersist:  func() { persist.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("webhook-audit-worker started", zap.String("topic", cfg.TopicPaymentWebhooks))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("webhook-audit-worker stopped")
}
