package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/internal/sales"
	"github.com/radieske/pix-webhook-hub/internal/shared/cache"
	"github.com/radieske/pix-webhook-hub/internal/shared/config"
	"github.com/radieske/pix-webhook-hub/internal/shared/db"
	"github.com/radieske/pix-webhook-hub/internal/shared/kafka"
	"github.com/radieske/pix-webhook-hub/internal/shared/logger"
	"github.com/radieske/pix-webhook-hub/internal/shared/metrics"
	"github.com/radieske/pix-webhook-hub/internal/webhook/bus"
	"github.com/radieske/pix-webhook-hub/internal/webhook/dispatcher"
	httpapi "github.com/radieske/pix-webhook-hub/internal/webhook/http"
	"github.com/radieske/pix-webhook-hub/internal/webhook/ledger"
	webhookmetrics "github.com/radieske/pix-webhook-hub/internal/webhook/metrics"
	"github.com/radieske/pix-webhook-hub/internal/webhook/producer"
	"github.com/radieske/pix-webhook-hub/internal/webhook/provider"
	"github.com/radieske/pix-webhook-hub/internal/webhook/service"
	"github.com/radieske/pix-webhook-hub/internal/webhook/ws"
)

func main() {
	// carrega config
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "webhook-service"
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	devEnv := cfg.Env == "local" || cfg.Env == "dev"

	// ledger de vendas: Postgres; em local sobe em memória se o banco não estiver disponível
	var (
		pg          *sql.DB
		salesLedger sales.Ledger
	)
	pg, err = db.ConnectPostgres(cfg.PostgresDSN)
	switch {
	case err == nil:
		defer pg.Close()
		if devEnv {
			if err := sales.EnsureSchema(ctx, pg); err != nil {
				log.Warn("sales schema", zap.Error(err))
			}
		}
		salesLedger = sales.NewPostgres(pg)
		log.Info("postgres connected")
	case cfg.Env == "local":
		log.Warn("postgres unavailable, using in-memory sales ledger", zap.Error(err))
		salesLedger = sales.NewMemory()
	default:
		log.Fatal("failed to connect postgres", zap.Error(err))
	}

	// Redis: persistência das configs de provedor e fan-out do feed ao vivo
	var redisClient *redis.Client
	redisClient, err = cache.ConnectRedis(cfg.RedisAddr)
	switch {
	case err == nil:
		defer redisClient.Close()
		log.Info("redis connected")
	case cfg.Env == "local":
		log.Warn("redis unavailable, provider configs stay in memory", zap.Error(err))
		redisClient = nil
	default:
		log.Fatal("failed to connect redis", zap.Error(err))
	}

	// registro de provedores
	var store provider.Store
	if redisClient != nil {
		store = provider.NewRedisStore(redisClient)
	}
	registry := provider.NewRegistry(log, store, provider.Defaults(cfg.PublicBaseURL, config.ProviderSecret))
	if err := registry.Load(ctx); err != nil {
		log.Warn("load persisted provider configs", zap.Error(err))
	}
	for _, c := range registry.List() {
		log.Info("webhook endpoint", zap.String("provider", c.ID), zap.String("url", c.URL), zap.Bool("enabled", c.Enabled))
	}

	// pipeline
	eventBus := bus.New(log)
	svc := service.New(service.Deps{
		Log:        log,
		Providers:  registry,
		Ledger:     ledger.New(cfg.LedgerCapacity),
		Dispatcher: dispatcher.New(log, registry, salesLedger, cfg.SaleLedgerTimeout),
		Bus:        eventBus,
		Sales:      salesLedger,
	})

	// listeners: métricas, Kafka (auditoria + DLQ) e feed WebSocket
	collector := webhookmetrics.NewCollector(prometheus.DefaultRegisterer)
	svc.Subscribe("metrics", collector.Listener())

	if devEnv {
		tctx, tcancel := context.WithTimeout(ctx, 10*time.Second)
		if err := kafka.EnsureTopics(tctx, cfg.KafkaBrokers, cfg.TopicPaymentWebhooks, cfg.TopicPaymentWebhooksDLQ); err != nil {
			log.Warn("kafka topics", zap.Error(err))
		}
		tcancel()
	}
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPaymentWebhooks)
	defer writer.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPaymentWebhooksDLQ)
	defer dlq.Close()
	svc.Subscribe("kafka", producer.NewKafkaPublisher(log, writer, dlq).Listener())
	log.Info("kafka writer ready", zap.String("topic", cfg.TopicPaymentWebhooks))

	hub := ws.NewHub(log, nil)
	if redisClient != nil {
		relay := ws.NewRedisRelay(redisClient, cfg.RedisPubSubChannel)
		relay.Start(ctx, log, hub)
		svc.Subscribe("ws-relay", relay.Listener())
	} else {
		svc.Subscribe("ws", hub.Listener())
	}

	// servidor de métricas e health
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		if pg != nil {
			if err := pg.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	})

	// API pública
	api := &httpapi.API{Log: log, Svc: svc, WS: hub.HandleWS}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("webhook api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("webhook-service stopped")
}
