package repository

import (
	"context"
	"database/sql"
	"fmt"
)

const Schema = `
CREATE TABLE IF NOT EXISTS webhook_audit (
	entry_id         TEXT PRIMARY KEY,
	provider         TEXT NOT NULL,
	payment_id       TEXT NOT NULL DEFAULT '',
	event            TEXT NOT NULL DEFAULT '',
	outcome          TEXT NOT NULL,
	processed        BOOLEAN NOT NULL,
	response_time_ms DOUBLE PRECISION NOT NULL,
	amount           NUMERIC(14,2) NOT NULL DEFAULT 0,
	received_at      TIMESTAMPTZ NOT NULL,
	payload          JSONB,
	audited_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_webhook_audit_payment ON webhook_audit (payment_id, received_at);
`

// EnsureSchema cria a tabela de auditoria quando não existir (usado em local/dev)
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}
