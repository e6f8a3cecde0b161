package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo processor
// O offset só é commitado depois que a mensagem foi gravada (ou descartada por ser inválida)
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Repo persiste cada webhook processado
type Repo interface {
	Insert(ctx context.Context, e events.WebhookProcessed) error
}

// Processor consome os webhooks processados do Kafka e grava a auditoria no Postgres
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   Repo

	OnConsumed func()       // métricas (counter++)
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase

	RetryDelay time.Duration // pausa após falha de leitura ou de insert; 0 usa 500ms
}

// Run inicia o loop de consumo até o contexto ser cancelado
// O offset só é commitado depois do insert; insert com falha é repetido
func (p *Processor) Run(ctx context.Context) error {
	delay := p.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if ev, ok := p.decode(m); ok {
			if err := p.persist(ctx, ev, delay); err != nil {
				return err
			}
		}

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// insert é idempotente por entry_id
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

func (p *Processor) decode(m kafka.Message) (events.WebhookProcessed, bool) {
	var ev events.WebhookProcessed
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Int64("offset", m.Offset), zap.Error(err))
		p.fail("decode")
		return ev, false
	}
	if ev.EntryID == "" {
		p.Log.Warn("message without entry id", zap.Int64("offset", m.Offset))
		p.fail("decode")
		return ev, false
	}
	return ev, true
}

// persist grava a auditoria, tentando de novo até conseguir ou ctx terminar
func (p *Processor) persist(ctx context.Context, ev events.WebhookProcessed, delay time.Duration) error {
	for {
		err := p.Repo.Insert(ctx, ev)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.Log.Warn("db insert audit failed", zap.String("entry_id", ev.EntryID), zap.Error(err))
		p.fail("db_insert")
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if p.OnPersist != nil {
		p.OnPersist()
	}
	p.Log.Debug("webhook audited",
		zap.String("entry_id", ev.EntryID),
		zap.String("outcome", string(ev.Outcome)),
	)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
