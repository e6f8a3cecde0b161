package sales

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema é a DDL da tabela de vendas
const Schema = `
CREATE TABLE IF NOT EXISTS sales (
	id            TEXT PRIMARY KEY,
	provider      TEXT NOT NULL,
	reseller_name TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING','PAID')),
	total_value   NUMERIC(14,2) NOT NULL,
	sale_date     TIMESTAMPTZ NOT NULL,
	paid_at       TIMESTAMPTZ,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sales_provider_pending ON sales (provider, sale_date) WHERE status = 'PENDING';
`

// EnsureSchema cria a tabela quando não existir (usado em local/dev)
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure sales schema: %w", err)
	}
	return nil
}
