package bus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// Handler recebe cada webhook processado
// Erros e panics de um handler não impedem a entrega aos demais
type Handler func(ctx context.Context, ev events.WebhookProcessed) error

type subscriber struct {
	id      uint64
	name    string
	handler Handler
}

// Bus faz fan-out síncrono, best-effort, dos webhooks processados
type Bus struct {
	log *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber // ordem de inscrição
}

func New(log *zap.Logger) *Bus {
	return &Bus{log: log}
}

// Subscription é o handle devolvido por Subscribe; Unsubscribe é idempotente
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// Unsubscribe remove o handler do bus
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.id) })
}

// Subscribe registra um handler; name aparece nos logs de falha
func (b *Bus) Subscribe(name string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, name: name, handler: h})
	return &Subscription{bus: b, id: b.nextID}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len retorna quantos handlers estão inscritos
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish entrega o evento a todos os handlers inscritos no momento da chamada
// e retorna quantos falharam
func (b *Bus) Publish(ctx context.Context, ev events.WebhookProcessed) int {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	failed := 0
	for _, s := range subs {
		if err := b.deliver(ctx, s, ev); err != nil {
			failed++
			b.log.Warn("webhook listener failed",
				zap.String("listener", s.name),
				zap.String("entry_id", ev.EntryID),
				zap.Error(err),
			)
		}
	}
	return failed
}

func (b *Bus) deliver(ctx context.Context, s subscriber, ev events.WebhookProcessed) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return s.handler(ctx, ev)
}
