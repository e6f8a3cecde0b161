package ledger

import (
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// DefaultCapacity é a retenção padrão do histórico de webhooks
const DefaultCapacity = 100

var (
	ErrEntryNotFound  = errors.New("ledger entry not found")
	ErrAlreadyMarked  = errors.New("ledger entry already marked")
	ErrInvalidLatency = errors.New("negative response time")
)

// Entry é o registro de um webhook recebido
// Imutável depois que MarkProcessed é aplicado
type Entry struct {
	ID             string           `json:"id"`
	PaymentID      string           `json:"paymentId"`
	Event          events.EventKind `json:"event"`
	Provider       string           `json:"source"`
	ReceivedAt     time.Time        `json:"timestamp"`
	Payload        json.RawMessage  `json:"payload,omitempty"`
	Processed      bool             `json:"processed"`
	Outcome        events.Outcome   `json:"outcome,omitempty"`
	ResponseTimeMs *float64         `json:"responseTimeMs,omitempty"`
}

// Marked indica se o resultado do processamento já foi gravado
func (e Entry) Marked() bool { return e.Outcome != "" }

func (e Entry) clone() Entry {
	if e.Payload != nil {
		e.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	if e.ResponseTimeMs != nil {
		v := *e.ResponseTimeMs
		e.ResponseTimeMs = &v
	}
	return e
}

// Ledger é o histórico append-only dos webhooks recebidos, limitado às
// últimas N entradas por receivedAt (as mais antigas saem primeiro)
type Ledger struct {
	capacity int

	mu      sync.RWMutex
	entries []Entry // ordenadas por ReceivedAt, mais antiga primeiro
}

// New cria um ledger com a retenção informada (<=0 usa DefaultCapacity)
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{capacity: capacity, entries: make([]Entry, 0, capacity)}
}

// Capacity retorna a retenção configurada
func (l *Ledger) Capacity() int { return l.capacity }

// Append registra um webhook ainda não processado e retorna o ID gerado
// O ID é local ao ledger, nunca vindo do provedor
// Com a janela cheia, um ReceivedAt mais antigo que toda a janela é ajustado
// para o da entrada mais antiga, para a nova entrada não ser descartada na hora
func (l *Ledger) Append(e Entry) string {
	e.ID = "wh_" + uuid.NewString()
	e.Processed = false
	e.Outcome = ""
	e.ResponseTimeMs = nil
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	e = e.clone()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.capacity && e.ReceivedAt.Before(l.entries[0].ReceivedAt) {
		e.ReceivedAt = l.entries[0].ReceivedAt
	}

	// inserção estável por ReceivedAt; no caso comum cai no final
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].ReceivedAt.After(e.ReceivedAt)
	})
	l.entries = append(l.entries, Entry{})
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = e

	if over := len(l.entries) - l.capacity; over > 0 {
		l.entries = slices.Delete(l.entries, 0, over)
	}
	return e.ID
}

// MarkProcessed grava o resultado de uma entrada, uma única vez
func (l *Ledger) MarkProcessed(entryID string, outcome events.Outcome, processed bool, responseTime time.Duration) error {
	if responseTime < 0 {
		return ErrInvalidLatency
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].ID != entryID {
			continue
		}
		if l.entries[i].Marked() {
			return ErrAlreadyMarked
		}
		ms := float64(responseTime) / float64(time.Millisecond)
		l.entries[i].Processed = processed
		l.entries[i].Outcome = outcome
		l.entries[i].ResponseTimeMs = &ms
		return nil
	}
	return ErrEntryNotFound
}

// Get retorna uma cópia da entrada
func (l *Ledger) Get(entryID string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.ID == entryID {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// History retorna uma cópia das entradas retidas, da mais antiga para a mais nova
func (l *Ledger) History() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

// Stats agrega as entradas retidas
// Os totais cobrem só a janela retida, não o histórico completo
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Compute(l.entries)
}
