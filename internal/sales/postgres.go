package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Postgres implementa o ledger de vendas em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de vendas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// CreatePending insere uma nova venda PENDING (usado pelo dashboard e pelo simulador)
func (p *Postgres) CreatePending(ctx context.Context, s *Sale) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	date := s.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sales (id, provider, reseller_name, status, total_value, sale_date)
		VALUES ($1,$2,$3,'PENDING',$4,$5)`,
		id, s.Provider, s.ResellerName, s.TotalValue, date,
	)
	if err != nil {
		return "", fmt.Errorf("insert sale: %w", err)
	}
	return id, nil
}

// FindPendingByProvider lista as vendas PENDING de um provedor, mais antigas primeiro
func (p *Postgres) FindPendingByProvider(ctx context.Context, providerID string) ([]Sale, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, provider, reseller_name, status, total_value, sale_date
		FROM sales
		WHERE provider=$1 AND status='PENDING'
		ORDER BY sale_date`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.Provider, &s.ResellerName, &s.Status, &s.TotalValue, &s.Date); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkPaid transiciona PENDING -> PAID numa única instrução condicional
// Dois webhooks concorrentes para a mesma venda nunca marcam os dois
func (p *Postgres) MarkPaid(ctx context.Context, paymentID string) (MarkResult, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sales SET status='PAID', paid_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='PENDING'`, paymentID)
	if err != nil {
		return "", fmt.Errorf("mark paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 1 {
		return MarkedPaid, nil
	}

	// nada alterado: ou já está paga ou não existe
	var st Status
	err = p.db.QueryRowContext(ctx, `SELECT status FROM sales WHERE id=$1`, paymentID).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound, nil
	}
	if err != nil {
		return "", err
	}
	return AlreadyPaid, nil
}

// GetStatus retorna o status atual de uma venda
func (p *Postgres) GetStatus(ctx context.Context, saleID string) (Status, error) {
	var s Status
	err := p.db.QueryRowContext(ctx, `SELECT status FROM sales WHERE id=$1`, saleID).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return s, err
}
