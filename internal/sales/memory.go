package sales

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory é um ledger de vendas em memória, usado em ENV=local e nos testes
type Memory struct {
	mu    sync.RWMutex
	sales map[string]Sale
	marks map[string]int // quantas transições PENDING->PAID cada venda sofreu
}

func NewMemory() *Memory {
	return &Memory{sales: make(map[string]Sale), marks: make(map[string]int)}
}

func (m *Memory) CreatePending(_ context.Context, s *Sale) (string, error) {
	c := *s
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Date.IsZero() {
		c.Date = time.Now().UTC()
	}
	c.Status = StatusPending

	m.mu.Lock()
	m.sales[c.ID] = c
	m.mu.Unlock()
	return c.ID, nil
}

func (m *Memory) FindPendingByProvider(_ context.Context, providerID string) ([]Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Sale
	for _, s := range m.sales {
		if s.Provider == providerID && s.Status == StatusPending {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) MarkPaid(ctx context.Context, paymentID string) (MarkResult, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[paymentID]
	if !ok {
		return NotFound, nil
	}
	if s.Status == StatusPaid {
		return AlreadyPaid, nil
	}
	s.Status = StatusPaid
	m.sales[paymentID] = s
	m.marks[paymentID]++
	return MarkedPaid, nil
}

func (m *Memory) GetStatus(_ context.Context, saleID string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[saleID]
	if !ok {
		return "", ErrNotFound
	}
	return s.Status, nil
}

// Transitions retorna quantas vezes a venda foi efetivamente marcada como paga
func (m *Memory) Transitions(saleID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marks[saleID]
}
