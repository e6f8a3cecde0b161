package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/internal/sales"
	"github.com/radieske/pix-webhook-hub/internal/webhook/provider"
	"github.com/radieske/pix-webhook-hub/internal/webhook/signature"
	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// DefaultSaleTimeout limita cada chamada ao ledger de vendas
const DefaultSaleTimeout = 2 * time.Second

// Providers é a visão do registro de provedores usada no dispatch
type Providers interface {
	Get(id string) (provider.Config, error)
}

// Inbound é um webhook já decodificado junto com o corpo bruto assinado
type Inbound struct {
	Event   events.PaymentEvent
	Payload []byte
}

// Result é o resultado de negócio do dispatch
// Err carrega o detalhe de falhas internas, só para log
type Result struct {
	Outcome events.Outcome
	Sale    sales.MarkResult
	Err     error
}

// Dispatcher valida o webhook e aplica a transição de estado correspondente
// Nunca retorna erro ao chamador: toda falha vira um Outcome
type Dispatcher struct {
	log       *zap.Logger
	providers Providers
	sales     sales.Ledger
	timeout   time.Duration
	locks     *keyLock
}

func New(log *zap.Logger, providers Providers, ledger sales.Ledger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSaleTimeout
	}
	return &Dispatcher{
		log:       log,
		providers: providers,
		sales:     ledger,
		timeout:   timeout,
		locks:     newKeyLock(),
	}
}

// Handle roda as verificações na ordem: provedor, assinatura, habilitado,
// coerência evento/status; depois despacha por tipo
func (d *Dispatcher) Handle(ctx context.Context, in Inbound) Result {
	ev := in.Event
	log := d.log.With(
		zap.String("payment_id", ev.PaymentID),
		zap.String("provider", ev.Provider),
		zap.String("event", string(ev.Event)),
	)

	cfg, err := d.providers.Get(ev.Provider)
	if err != nil {
		log.Warn("webhook from unknown provider")
		return Result{Outcome: events.OutcomeUnknownProvider, Err: err}
	}

	if err := signature.Verify(in.Payload, ev.Signature, cfg.Secret); err != nil {
		log.Warn("invalid webhook signature", zap.Error(err))
		return Result{Outcome: events.OutcomeInvalidSignature, Err: err}
	}

	if !cfg.Enabled {
		log.Info("webhook from disabled provider ignored")
		return Result{Outcome: events.OutcomeProviderDisabled}
	}

	if !ev.Consistent() {
		log.Warn("event kind does not match payment status", zap.String("status", string(ev.Status)))
		return Result{Outcome: events.OutcomeStatusMismatch}
	}

	// a lista de eventos do provedor é só informativa; tipos conhecidos são sempre despachados
	if ev.Event.Known() && !cfg.Subscribed(ev.Event) {
		log.Debug("event kind not in provider subscription list")
	}

	switch ev.Event {
	case events.KindConfirmed:
		return d.confirm(ctx, log, ev)
	case events.KindFailed:
		// venda nunca volta para um estado de falha automaticamente
		log.Info("payment failed", zap.String("amount", ev.Amount.StringFixed(2)))
		return Result{Outcome: events.OutcomeProcessed}
	case events.KindExpired:
		log.Info("payment expired", zap.String("amount", ev.Amount.StringFixed(2)))
		return Result{Outcome: events.OutcomeProcessed}
	case events.KindCreated:
		log.Debug("payment created")
		return Result{Outcome: events.OutcomeProcessed}
	default:
		log.Info("webhook event received but not handled")
		return Result{Outcome: events.OutcomeUnhandled}
	}
}

// confirm marca a venda como paga com compare-and-set, serializado por paymentId
func (d *Dispatcher) confirm(ctx context.Context, log *zap.Logger, ev events.PaymentEvent) Result {
	unlock := d.locks.Lock(ev.PaymentID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	mark, err := d.markPaid(ctx, ev.PaymentID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("sale ledger timeout", zap.Duration("timeout", d.timeout))
		} else {
			log.Error("sale ledger mark paid failed", zap.Error(err))
		}
		return Result{Outcome: events.OutcomeInternalError, Err: err}
	}

	switch mark {
	case sales.MarkedPaid:
		log.Info("payment confirmed via webhook",
			zap.String("pix_id", ev.ProviderPaymentID),
			zap.String("transaction_id", ev.TransactionID),
			zap.String("amount", ev.Amount.StringFixed(2)),
		)
		return Result{Outcome: events.OutcomeProcessed, Sale: mark}
	case sales.AlreadyPaid:
		log.Info("payment already confirmed, ignoring duplicate")
		return Result{Outcome: events.OutcomeProcessed, Sale: mark}
	case sales.NotFound:
		log.Warn("sale not found for confirmed payment")
		return Result{Outcome: events.OutcomeUnhandled, Sale: mark, Err: sales.ErrNotFound}
	default:
		return Result{Outcome: events.OutcomeInternalError, Err: fmt.Errorf("unexpected mark result %q", mark)}
	}
}

type markReply struct {
	res sales.MarkResult
	err error
}

// markPaid chama o ledger de vendas respeitando o deadline mesmo que a
// implementação ignore o contexto; panics viram erro
func (d *Dispatcher) markPaid(ctx context.Context, paymentID string) (sales.MarkResult, error) {
	ch := make(chan markReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- markReply{err: fmt.Errorf("sale ledger panic: %v", r)}
			}
		}()
		res, err := d.sales.MarkPaid(ctx, paymentID)
		ch <- markReply{res: res, err: err}
	}()

	select {
	case rep := <-ch:
		return rep.res, rep.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
