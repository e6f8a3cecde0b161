package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const configsKey = "webhook:providers"

// RedisStore persiste as configurações de provedores num hash Redis
// compartilhado entre as instâncias do webhook-service
type RedisStore struct {
	R *redis.Client
}

func NewRedisStore(r *redis.Client) *RedisStore { return &RedisStore{R: r} }

func (s *RedisStore) Save(ctx context.Context, c Config) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.R.HSet(ctx, configsKey, c.ID, b).Err()
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]Config, error) {
	m, err := s.R.HGetAll(ctx, configsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Config, 0, len(m))
	for id, raw := range m {
		var c Config
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode provider %s: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}
