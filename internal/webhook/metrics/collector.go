package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// Collector expõe contadores e latência dos webhooks processados
type Collector struct {
	received *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	paid     *prometheus.CounterVec
}

// NewCollector registra as métricas no registerer informado
// (prometheus.DefaultRegisterer em produção, um registry novo nos testes)
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pix_webhooks_total",
			Help: "webhooks recebidos por provedor e resultado",
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pix_webhook_processing_seconds",
			Help:    "tempo entre o recebimento e o resultado do webhook",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"provider"}),
		paid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pix_webhook_confirmed_amount_total",
			Help: "soma dos valores de vendas marcadas como pagas via webhook",
		}, []string{"provider"}),
	}
	reg.MustRegister(c.received, c.latency, c.paid)
	return c
}

// Observe contabiliza um webhook processado
func (c *Collector) Observe(ev events.WebhookProcessed) {
	c.received.WithLabelValues(ev.Provider, string(ev.Outcome)).Inc()
	c.latency.WithLabelValues(ev.Provider).Observe(ev.ResponseTimeMs / 1000)
	if ev.SaleTransitioned {
		c.paid.WithLabelValues(ev.Provider).Add(ev.Amount.InexactFloat64())
	}
}

// Listener adapta o collector como handler do bus
func (c *Collector) Listener() func(context.Context, events.WebhookProcessed) error {
	return func(_ context.Context, ev events.WebhookProcessed) error {
		c.Observe(ev)
		return nil
	}
}
