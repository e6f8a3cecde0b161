package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

func TestPublish_IsolatesFailingHandlers(t *testing.T) {
	b := New(zap.NewNop())
	var got []string

	b.Subscribe("first", func(context.Context, events.WebhookProcessed) error {
		got = append(got, "first")
		return nil
	})
	b.Subscribe("panics", func(context.Context, events.WebhookProcessed) error { panic("listener exploded") })
	b.Subscribe("errors", func(context.Context, events.WebhookProcessed) error { return errors.New("kafka down") })
	b.Subscribe("last", func(context.Context, events.WebhookProcessed) error {
		got = append(got, "last")
		return nil
	})

	failed := b.Publish(context.Background(), events.WebhookProcessed{EntryID: "wh_1"})

	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"first", "last"}, got)
}

func TestUnsubscribe(t *testing.T) {
	b := New(zap.NewNop())
	calls := 0
	sub := b.Subscribe("counter", func(context.Context, events.WebhookProcessed) error {
		calls++
		return nil
	})
	other := b.Subscribe("other", func(context.Context, events.WebhookProcessed) error { return nil })

	b.Publish(context.Background(), events.WebhookProcessed{})
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish(context.Background(), events.WebhookProcessed{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, b.Len())
	other.Unsubscribe()
	assert.Zero(t, b.Len())
}

func TestPublish_UnsubscribeFromInsideHandler(t *testing.T) {
	b := New(zap.NewNop())
	var sub *Subscription
	calls := 0
	sub = b.Subscribe("once", func(context.Context, events.WebhookProcessed) error {
		calls++
		sub.Unsubscribe()
		return nil
	})

	b.Publish(context.Background(), events.WebhookProcessed{})
	b.Publish(context.Background(), events.WebhookProcessed{})
	assert.Equal(t, 1, calls)
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	b := New(zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := b.Subscribe("tmp", func(context.Context, events.WebhookProcessed) error { return nil })
			s.Unsubscribe()
		}()
		go func() {
			defer wg.Done()
			b.Publish(context.Background(), events.WebhookProcessed{})
		}()
	}
	wg.Wait()
	assert.Zero(t, b.Len())
}
