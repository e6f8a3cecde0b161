package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// publishTimeout limita o tempo que um listener do bus segura a ingestão
const publishTimeout = 2 * time.Second

// MessageWriter é o subconjunto de *kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica cada webhook processado no tópico de auditoria
// Resultados INTERNAL_ERROR também vão para a DLQ, quando configurada
type KafkaPublisher struct {
	Writer MessageWriter
	DLQ    MessageWriter // opcional
	log    *zap.Logger
}

func NewKafkaPublisher(log *zap.Logger, w, dlq MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, DLQ: dlq, log: log}
}

// Publish serializa o evento e envia com chave = paymentId (mesma venda, mesma partição)
func (p *KafkaPublisher) Publish(ctx context.Context, ev events.WebhookProcessed) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal webhook: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.PaymentID),
		Value: value,
		Time:  ev.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(ev.Outcome)},
			{Key: "provider", Value: []byte(ev.Provider)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish webhook %s: %w", ev.EntryID, err)
	}
	if ev.Outcome == events.OutcomeInternalError && p.DLQ != nil {
		if err := p.DLQ.WriteMessages(ctx, msg); err != nil {
			return fmt.Errorf("publish webhook %s to dlq: %w", ev.EntryID, err)
		}
		p.log.Warn("webhook sent to dlq", zap.String("entry_id", ev.EntryID), zap.String("payment_id", ev.PaymentID))
	}

	p.log.Debug("published webhook", zap.String("entry_id", ev.EntryID))
	return nil
}

// Listener adapta o publisher como handler do bus
func (p *KafkaPublisher) Listener() func(context.Context, events.WebhookProcessed) error {
	return p.Publish
}
