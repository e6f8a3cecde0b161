package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func processed(outcome events.Outcome) events.WebhookProcessed {
	return events.WebhookProcessed{
		EntryID:    "wh_1",
		Provider:   "check-pix",
		PaymentID:  "S1",
		Event:      events.KindConfirmed,
		Outcome:    outcome,
		Processed:  outcome == events.OutcomeProcessed,
		ReceivedAt: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublish_KeyedByPaymentID(t *testing.T) {
	w, dlq := &fakeWriter{}, &fakeWriter{}
	p := NewKafkaPublisher(zap.NewNop(), w, dlq)

	require.NoError(t, p.Publish(context.Background(), processed(events.OutcomeProcessed)))
	require.Len(t, w.msgs, 1)
	assert.Empty(t, dlq.msgs)

	m := w.msgs[0]
	assert.Equal(t, "S1", string(m.Key))
	var got events.WebhookProcessed
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, "wh_1", got.EntryID)
	assert.Equal(t, events.OutcomeProcessed, got.Outcome)
	assert.Contains(t, m.Headers, kafka.Header{Key: "outcome", Value: []byte("PROCESSED")})
}

func TestPublish_InternalErrorGoesToDLQ(t *testing.T) {
	w, dlq := &fakeWriter{}, &fakeWriter{}
	p := NewKafkaPublisher(zap.NewNop(), w, dlq)

	require.NoError(t, p.Publish(context.Background(), processed(events.OutcomeInternalError)))
	assert.Len(t, w.msgs, 1)
	assert.Len(t, dlq.msgs, 1)
}

func TestPublish_NoDLQConfigured(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(zap.NewNop(), w, nil)
	require.NoError(t, p.Publish(context.Background(), processed(events.OutcomeInternalError)))
	assert.Len(t, w.msgs, 1)
}

func TestPublish_WriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(zap.NewNop(), &fakeWriter{err: boom}, nil)
	err := p.Listener()(context.Background(), processed(events.OutcomeProcessed))
	assert.ErrorIs(t, err, boom)
}
