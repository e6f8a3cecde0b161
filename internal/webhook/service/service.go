package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/internal/sales"
	"github.com/radieske/pix-webhook-hub/internal/webhook/bus"
	"github.com/radieske/pix-webhook-hub/internal/webhook/dispatcher"
	"github.com/radieske/pix-webhook-hub/internal/webhook/ledger"
	"github.com/radieske/pix-webhook-hub/internal/webhook/provider"
	"github.com/radieske/pix-webhook-hub/internal/webhook/signature"
	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

// testAmount é o valor usado nos webhooks de teste disparados pelo operador
var testAmount = decimal.RequireFromString("68.90")

// Deps reúne as dependências do pipeline, construídas uma vez no main
type Deps struct {
	Log        *zap.Logger
	Providers  *provider.Registry
	Ledger     *ledger.Ledger
	Dispatcher *dispatcher.Dispatcher
	Bus        *bus.Bus
	Sales      sales.Ledger
	Now        func() time.Time // opcional, para testes
}

// Service é o pipeline de ingestão: ledger -> dispatch -> mark -> publish
type Service struct {
	log        *zap.Logger
	providers  *provider.Registry
	ledger     *ledger.Ledger
	dispatcher *dispatcher.Dispatcher
	bus        *bus.Bus
	sales      sales.Ledger
	now        func() time.Time
}

func New(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		log:        d.Log,
		providers:  d.Providers,
		ledger:     d.Ledger,
		dispatcher: d.Dispatcher,
		bus:        d.Bus,
		sales:      d.Sales,
		now:        now,
	}
}

// Receipt resume o que aconteceu com um webhook ingerido
type Receipt struct {
	EntryID      string         `json:"entryId"`
	Outcome      events.Outcome `json:"outcome"`
	Processed    bool           `json:"processed"`
	ResponseTime time.Duration  `json:"-"`
}

// Ingest processa um webhook recebido até o fim
// Só retorna erro (ErrMalformedPayload) quando o corpo não respeita o schema;
// mesmo assim o webhook fica registrado no ledger
func (s *Service) Ingest(ctx context.Context, providerID string, body []byte, sig string) (Receipt, error) {
	receivedAt := s.now()

	// depois de aceito, o webhook é processado até o fim mesmo que o provedor desconecte
	ctx = context.WithoutCancel(ctx)

	ev, err := decode(providerID, body)
	if err != nil {
		entry := ledger.Entry{
			PaymentID:  ev.PaymentID,
			Event:      ev.Event,
			Provider:   providerID,
			ReceivedAt: receivedAt,
		}
		if json.Valid(body) {
			entry.Payload = body
		}
		r := s.finish(ctx, s.ledger.Append(entry), ev, providerID, body, receivedAt,
			dispatcher.Result{Outcome: events.OutcomeMalformedPayload, Err: err})
		return r, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	ev.Signature = sig
	ev.ReceivedAt = receivedAt

	entryID := s.ledger.Append(ledger.Entry{
		PaymentID:  ev.PaymentID,
		Event:      ev.Event,
		Provider:   providerID,
		ReceivedAt: receivedAt,
		Payload:    body,
	})

	res := s.dispatcher.Handle(ctx, dispatcher.Inbound{Event: ev, Payload: body})
	return s.finish(ctx, entryID, ev, providerID, body, receivedAt, res), nil
}

// finish grava o resultado no ledger e só então notifica os listeners
func (s *Service) finish(
	ctx context.Context,
	entryID string,
	ev events.PaymentEvent,
	providerID string,
	body []byte,
	receivedAt time.Time,
	res dispatcher.Result,
) Receipt {
	elapsed := s.now().Sub(receivedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	processed := res.Outcome.Committed()

	if err := s.ledger.MarkProcessed(entryID, res.Outcome, processed, elapsed); err != nil {
		// acontece quando a entrada já saiu da janela de retenção
		s.log.Warn("ledger mark processed", zap.String("entry_id", entryID), zap.Error(err))
	}

	msg := events.WebhookProcessed{
		EntryID:        entryID,
		Provider:       providerID,
		PaymentID:      ev.PaymentID,
		Event:          ev.Event,
		Outcome:        res.Outcome,
		Processed:      processed,
		ResponseTimeMs: float64(elapsed) / float64(time.Millisecond),
		Amount:         ev.Amount,
		ReceivedAt:     receivedAt,

		SaleResult:       string(res.Sale),
		SaleTransitioned: res.Sale == sales.MarkedPaid,
	}
	if json.Valid(body) {
		msg.Payload = body
	}
	s.bus.Publish(ctx, msg)

	fields := []zap.Field{
		zap.String("entry_id", entryID),
		zap.String("payment_id", ev.PaymentID),
		zap.String("provider", providerID),
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("latency", elapsed),
	}
	if res.Err != nil {
		fields = append(fields, zap.NamedError("reason", res.Err))
	}
	if processed {
		s.log.Info("webhook processed", fields...)
	} else {
		s.log.Warn("webhook not processed", fields...)
	}

	return Receipt{EntryID: entryID, Outcome: res.Outcome, Processed: processed, ResponseTime: elapsed}
}

// decode valida o schema do payload; o evento parcial é devolvido mesmo com erro
func decode(providerID string, body []byte) (events.PaymentEvent, error) {
	var ev events.PaymentEvent
	if len(body) == 0 {
		return ev, errors.New("empty body")
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return events.PaymentEvent{}, fmt.Errorf("decode json: %w", err)
	}

	if err := ev.Validate(); err != nil {
		return ev, err
	}
	switch {
	case ev.Amount.IsNegative():
		return ev, errors.New("amount must not be negative")
	case ev.Provider != "" && ev.Provider != providerID:
		return ev, fmt.Errorf("provider %q does not match endpoint %q", ev.Provider, providerID)
	}
	ev.Provider = providerID
	return ev, nil
}

// TestWebhook sintetiza um evento confirmado, assinado com o secret do provedor,
// e o envia pelo mesmo caminho de ingestão dos webhooks reais
func (s *Service) TestWebhook(ctx context.Context, providerID, paymentID string) (Receipt, error) {
	now := s.now()
	ev := events.PaymentEvent{
		Event:             events.KindConfirmed,
		PaymentID:         paymentID,
		ProviderPaymentID: "test_pix_" + paymentID,
		Amount:            testAmount,
		Status:            events.StatusPaid,
		PaidAt:            &now,
		Customer:          &events.Customer{Name: "Teste Webhook", Email: "teste@webhook.com"},
		TransactionID:     "test_tx_" + strconv.FormatInt(now.UnixMilli(), 10),
		Provider:          providerID,
		Timestamp:         now,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return Receipt{}, err
	}

	// provedor desconhecido segue sem assinatura e é rejeitado pelo pipeline
	sig := ""
	if cfg, err := s.providers.Get(providerID); err == nil {
		sig = signature.Sign(body, cfg.Secret)
	}

	s.log.Info("test webhook fired", zap.String("provider", providerID), zap.String("payment_id", paymentID))
	return s.Ingest(ctx, providerID, body, sig)
}

// Subscribe registra um listener de webhooks processados
func (s *Service) Subscribe(name string, h bus.Handler) *bus.Subscription {
	return s.bus.Subscribe(name, h)
}

func (s *Service) GetConfig(providerID string) (provider.Config, error) {
	return s.providers.Get(providerID)
}

func (s *Service) ListConfigs() []provider.Config {
	return s.providers.List()
}

func (s *Service) UpdateConfig(ctx context.Context, providerID string, p provider.Patch) (provider.Config, error) {
	return s.providers.Update(ctx, providerID, p)
}

// History retorna as entradas retidas, da mais antiga para a mais nova
func (s *Service) History() []ledger.Entry {
	return s.ledger.History()
}

func (s *Service) Stats() ledger.Stats {
	return s.ledger.Stats()
}

// PendingSales lista as vendas ainda aguardando webhook de um provedor
func (s *Service) PendingSales(ctx context.Context, providerID string) ([]sales.Sale, error) {
	if _, err := s.providers.Get(providerID); err != nil {
		return nil, err
	}
	return s.sales.FindPendingByProvider(ctx, providerID)
}
