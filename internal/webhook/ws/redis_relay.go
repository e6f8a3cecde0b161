package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/pix-webhook-hub/pkg/contracts/events"
)

// RedisRelay replica os webhooks processados entre instâncias via Redis Pub/Sub
// O bus publica no canal e cada instância repassa o que recebe ao seu Hub
type RedisRelay struct {
	R       *redis.Client
	Channel string
}

func NewRedisRelay(r *redis.Client, channel string) *RedisRelay {
	return &RedisRelay{R: r, Channel: channel}
}

// Listener é o handler do bus que publica no canal
func (rr *RedisRelay) Listener() func(context.Context, events.WebhookProcessed) error {
	return func(ctx context.Context, ev events.WebhookProcessed) error {
		if ev.Duplicate() {
			return nil
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal webhook: %w", err)
		}
		if err := rr.R.Publish(ctx, rr.Channel, b).Err(); err != nil {
			return fmt.Errorf("redis publish: %w", err)
		}
		return nil
	}
}

// Start escuta o canal e repassa as mensagens ao hub até ctx terminar
func (rr *RedisRelay) Start(ctx context.Context, log *zap.Logger, hub *Hub) {
	sub := rr.R.Subscribe(ctx, rr.Channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				var ev events.WebhookProcessed
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn("ws relay unmarshal", zap.Error(err))
					continue
				}
				hub.Broadcast(ev)
			}
		}
	}()
}
