package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// PostgresRepo grava a trilha de auditoria dos webhooks processados
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// Insert grava uma linha por webhook; reentregas do Kafka (mesmo entry_id) são ignoradas
func (r *PostgresRepo) Insert(ctx context.Context, e events.WebhookProcessed) error {
	const q = `
		INSERT INTO webhook_audit
		  (entry_id, provider, payment_id, event, outcome, processed, response_time_ms, amount, received_at, payload)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (entry_id) DO NOTHING
	`
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	_, err := r.DB.ExecContext(ctx, q,
		e.EntryID, e.Provider, e.PaymentID, string(e.Event), string(e.Outcome),
		e.Processed, e.ResponseTimeMs, e.Amount, e.ReceivedAt, payload,
	)
	return err
}
