package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// EventKind é o tipo de evento anunciado pelo provedor PIX
type EventKind string

const (
	KindCreated   EventKind = "payment.created"
	KindConfirmed EventKind = "payment.confirmed"
	KindFailed    EventKind = "payment.failed"
	KindExpired   EventKind = "payment.expired"
)

// Known indica se o pipeline sabe tratar o tipo de evento
func (k EventKind) Known() bool {
	_, ok := k.ExpectedStatus()
	return ok
}

// ExpectedStatus retorna o status bruto do provedor compatível com o evento
func (k EventKind) ExpectedStatus() (PaymentStatus, bool) {
	switch k {
	case KindCreated:
		return StatusPending, true
	case KindConfirmed:
		return StatusPaid, true
	case KindFailed:
		return StatusFailed, true
	case KindExpired:
		return StatusExpired, true
	}
	return "", false
}

// PaymentStatus é o status bruto informado pelo provedor
type PaymentStatus string

const (
	StatusPending PaymentStatus = "PENDING"
	StatusPaid    PaymentStatus = "PAID"
	StatusFailed  PaymentStatus = "FAILED"
	StatusExpired PaymentStatus = "EXPIRED"
)

type Customer struct {
	Name     string `json:"name,omitempty" validate:"max=200"`
	Document string `json:"document,omitempty" validate:"max=32"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// PaymentEvent é o payload normalizado do webhook PIX
// Signature vem do header X-Webhook-Signature e ReceivedAt é atribuído na borda de ingestão
type PaymentEvent struct {
	Event             EventKind       `json:"event" validate:"required"`
	PaymentID         string          `json:"payment_id" validate:"required,max=128"`
	ProviderPaymentID string          `json:"pix_id" validate:"max=128"`
	Amount            decimal.Decimal `json:"amount"`
	Status            PaymentStatus   `json:"status" validate:"required"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	Customer          *Customer       `json:"customer,omitempty" validate:"omitempty"`
	TransactionID     string          `json:"transaction_id,omitempty" validate:"max=128"`
	Provider          string          `json:"provider"`
	Timestamp         time.Time       `json:"timestamp"`

	Signature  string    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate confere o schema do payload (campos obrigatórios e limites)
func (e PaymentEvent) Validate() error {
	validateOnce.Do(func() { validate = validator.New() })
	return validate.Struct(e)
}

// Consistent indica se o status bruto bate com o tipo do evento
// Eventos de tipo desconhecido não são verificados aqui
func (e PaymentEvent) Consistent() bool {
	want, ok := e.Event.ExpectedStatus()
	if !ok {
		return true
	}
	return e.Status == want
}

// Outcome é o resultado de negócio do processamento de um webhook
// Nunca é refletido no status HTTP devolvido ao provedor
type Outcome string

const (
	OutcomeProcessed        Outcome = "PROCESSED"
	OutcomeUnhandled        Outcome = "UNHANDLED"
	OutcomeUnknownProvider  Outcome = "UNKNOWN_PROVIDER"
	OutcomeInvalidSignature Outcome = "INVALID_SIGNATURE"
	OutcomeProviderDisabled Outcome = "PROVIDER_DISABLED"
	OutcomeMalformedPayload Outcome = "MALFORMED_PAYLOAD"
	OutcomeStatusMismatch   Outcome = "STATUS_MISMATCH"
	OutcomeInternalError    Outcome = "INTERNAL_ERROR"
)

// Committed indica se o efeito de negócio foi aplicado (ou já estava aplicado)
func (o Outcome) Committed() bool { return o == OutcomeProcessed }

// WebhookProcessed é publicado no bus (e no Kafka) depois que o resultado é conhecido
type WebhookProcessed struct {
	EntryID        string          `json:"entryId"`
	Provider       string          `json:"provider"`
	PaymentID      string          `json:"paymentId"`
	Event          EventKind       `json:"event"`
	Outcome        Outcome         `json:"outcome"`
	Processed      bool            `json:"processed"`
	ResponseTimeMs float64         `json:"responseTimeMs"`
	Amount         decimal.Decimal `json:"amount"`
	ReceivedAt     time.Time       `json:"receivedAt"`
	Payload        json.RawMessage `json:"payload,omitempty"`

	// SaleResult é o retorno do ledger de vendas quando houve transição (ex: MARKED_PAID)
	SaleResult string `json:"saleResult,omitempty"`
	// SaleTransitioned é true só para o webhook que efetivamente marcou a venda como paga
	SaleTransitioned bool `json:"saleTransitioned"`
}

// Duplicate indica uma confirmação repetida: processada, mas a venda já estava paga
// Listeners de notificação e receita devem ignorá-la; a auditoria recebe todas
func (w WebhookProcessed) Duplicate() bool {
	return w.Event == KindConfirmed && w.Outcome == OutcomeProcessed && !w.SaleTransitioned
}
