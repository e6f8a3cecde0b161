package events

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentEvent_Consistent(t *testing.T) {
	tests := []struct {
		kind   EventKind
		status PaymentStatus
		want   bool
	}{
		{KindConfirmed, StatusPaid, true},
		{KindConfirmed, StatusPending, false},
		{KindCreated, StatusPending, true},
		{KindFailed, StatusFailed, true},
		{KindFailed, StatusPaid, false},
		{KindExpired, StatusExpired, true},
		{EventKind("payment.refunded"), StatusPaid, true},
	}

	for _, tt := range tests {
		e := PaymentEvent{Event: tt.kind, Status: tt.status}
		assert.Equal(t, tt.want, e.Consistent(), "%s/%s", tt.kind, tt.status)
	}
}

func TestEventKind_Known(t *testing.T) {
	assert.True(t, KindExpired.Known())
	assert.False(t, EventKind("payment.refunded").Known())
	assert.False(t, EventKind("").Known())
}

func TestPaymentEvent_DecodesProviderPayload(t *testing.T) {
	raw := []byte(`{
		"event": "payment.confirmed",
		"payment_id": "S1",
		"pix_id": "pix_S1",
		"amount": 6.89,
		"status": "PAID",
		"paid_at": "2025-01-10T12:00:00Z",
		"customer": {"name": "Maria", "email": "cliente@email.com"},
		"transaction_id": "tx_1",
		"provider": "check-pix",
		"timestamp": "2025-01-10T12:00:00Z"
	}`)

	var e PaymentEvent
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, KindConfirmed, e.Event)
	assert.True(t, e.Amount.Equal(decimal.RequireFromString("6.89")))
	require.NotNil(t, e.PaidAt)
	assert.Equal(t, "Maria", e.Customer.Name)
	assert.Empty(t, e.Signature)
}

func TestOutcome_Committed(t *testing.T) {
	assert.True(t, OutcomeProcessed.Committed())
	assert.False(t, OutcomeUnhandled.Committed())
	assert.False(t, OutcomeInternalError.Committed())
}

func TestWebhookProcessed_Duplicate(t *testing.T) {
	first := WebhookProcessed{Event: KindConfirmed, Outcome: OutcomeProcessed, Processed: true, SaleTransitioned: true}
	again := WebhookProcessed{Event: KindConfirmed, Outcome: OutcomeProcessed, Processed: true}

	assert.False(t, first.Duplicate())
	assert.True(t, again.Duplicate())
	assert.False(t, WebhookProcessed{Event: KindExpired, Outcome: OutcomeProcessed, Processed: true}.Duplicate())
	assert.False(t, WebhookProcessed{Event: KindConfirmed, Outcome: OutcomeInvalidSignature}.Duplicate())
}

func TestPaymentEvent_Validate(t *testing.T) {
	valid := PaymentEvent{Event: KindConfirmed, PaymentID: "S1", Status: StatusPaid}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		mut  func(e *PaymentEvent)
	}{
		{"missing event", func(e *PaymentEvent) { e.Event = "" }},
		{"missing payment id", func(e *PaymentEvent) { e.PaymentID = "" }},
		{"missing status", func(e *PaymentEvent) { e.Status = "" }},
		{"bad customer email", func(e *PaymentEvent) { e.Customer = &Customer{Email: "not-an-email"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mut(&e)
			assert.Error(t, e.Validate())
		})
	}

	withCustomer := valid
	withCustomer.Customer = &Customer{Name: "Teste Webhook", Email: "teste@webhook.com"}
	assert.NoError(t, withCustomer.Validate())
}
