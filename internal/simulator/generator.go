package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/internal/sales"
	"github.com/radieske/pix-webhook-hub/internal/webhook/signature"
	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// Probability é a chance de um webhook de confirmação por verificação:
// cresce 20% por minuto desde a venda, limitada a 90%, e só 10% disso por tick
func Probability(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return math.Min(elapsed.Minutes()*0.2, 0.9) * 0.1
}

// Sender é o transporte usado pelo gerador
type Sender interface {
	Send(ctx context.Context, providerID string, body []byte, sig string) error
}

// Generator é uma fixture de testes: simula o provedor confirmando vendas pendentes
// Usa o mesmo caminho HTTP de um provedor real, nunca o pipeline diretamente
type Generator struct {
	Log      *zap.Logger
	Sales    sales.Ledger
	Sender   Sender
	Provider string
	Secret   string

	Rand func() float64   // default rand.Float64
	Now  func() time.Time // default time.Now

	OnSent  func()
	OnError func(string)
}

// Tick verifica as vendas pendentes uma vez e retorna quantos webhooks foram enviados
func (g *Generator) Tick(ctx context.Context) (int, error) {
	pending, err := g.Sales.FindPendingByProvider(ctx, g.Provider)
	if err != nil {
		g.fail("find_pending")
		return 0, fmt.Errorf("find pending sales: %w", err)
	}

	now := g.now()
	sent := 0
	for _, s := range pending {
		if g.roll() >= Probability(now.Sub(s.Date)) {
			continue
		}
		body, err := json.Marshal(g.confirmation(s, now))
		if err != nil {
			g.fail("encode")
			continue
		}
		if err := g.Sender.Send(ctx, g.Provider, body, signature.Sign(body, g.Secret)); err != nil {
			g.Log.Warn("simulated webhook failed", zap.String("payment_id", s.ID), zap.Error(err))
			g.fail("send")
			continue
		}
		sent++
		if g.OnSent != nil {
			g.OnSent()
		}
		g.Log.Info("simulated webhook sent", zap.String("payment_id", s.ID), zap.String("provider", g.Provider))
	}
	return sent, nil
}

// Run executa Tick a cada intervalo até ctx terminar
func (g *Generator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := g.Tick(ctx); err != nil && ctx.Err() == nil {
				g.Log.Warn("simulator tick", zap.Error(err))
			}
		}
	}
}

func (g *Generator) confirmation(s sales.Sale, now time.Time) events.PaymentEvent {
	return events.PaymentEvent{
		Event:             events.KindConfirmed,
		PaymentID:         s.ID,
		ProviderPaymentID: "pix_" + s.ID,
		Amount:            s.TotalValue,
		Status:            events.StatusPaid,
		PaidAt:            &now,
		Customer:          &events.Customer{Name: s.ResellerName, Email: "cliente@email.com"},
		TransactionID:     fmt.Sprintf("tx_%d_%08x", now.UnixMilli(), rand.Uint32()),
		Provider:          g.Provider,
		Timestamp:         now,
	}
}

func (g *Generator) roll() float64 {
	if g.Rand != nil {
		return g.Rand()
	}
	return rand.Float64()
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

func (g *Generator) fail(stage string) {
	if g.OnError != nil {
		g.OnError(stage)
	}
}
