package sales

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status é o status autoritativo de uma venda
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
)

var ErrNotFound = errors.New("sale not found")

// Sale é o registro de venda mantido pelo dashboard
// O pipeline de webhooks só altera Status, via MarkPaid
type Sale struct {
	ID           string          `json:"id"`
	Provider     string          `json:"provider"`
	ResellerName string          `json:"resellerName,omitempty"`
	Status       Status          `json:"status"`
	TotalValue   decimal.Decimal `json:"totalValue"`
	Date         time.Time       `json:"date"`
}

// MarkResult é o resultado de uma transição para PAID
type MarkResult string

const (
	MarkedPaid  MarkResult = "MARKED_PAID"
	AlreadyPaid MarkResult = "ALREADY_PAID"
	NotFound    MarkResult = "NOT_FOUND"
)

// Ledger é o contrato do ledger de vendas usado pelo pipeline
// MarkPaid é compare-and-set: só transiciona vendas PENDING
type Ledger interface {
	FindPendingByProvider(ctx context.Context, providerID string) ([]Sale, error)
	MarkPaid(ctx context.Context, paymentID string) (MarkResult, error)
}
