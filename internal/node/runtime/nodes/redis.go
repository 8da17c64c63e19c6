package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// Redis gets, sets or deletes a key against a shared client.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis { return &Redis{client: client} }

func (r *Redis) Type() string { return "redis" }

func (r *Redis) ConfigSchema() map[string]interface{} {
	return schema([]string{"operation", "key"}, map[string]interface{}{
		"operation": prop("string", "get, set or delete"),
		"key":       prop("string", "Redis key"),
		"value":     prop("string", "Value for set"),
		"ttl":       prop("string", "Expiry for set, e.g. 60s"),
	})
}

func (r *Redis) Execute(ctx context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	if r.client == nil {
		return nil, errors.New("redis is not configured")
	}
	operation, err := stringConfig(cfg, "operation")
	if err != nil {
		return nil, err
	}
	key, err := stringConfig(cfg, "key")
	if err != nil {
		return nil, err
	}

	switch operation {
	case "get":
		value, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return map[string]interface{}{"key": key, "found": false}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get failed: %w", err)
		}
		return map[string]interface{}{"key": key, "value": value, "found": true}, nil

	case "set":
		value := optionalString(cfg, "value", "")
		ttl := optionalDuration(cfg, "ttl", 0)
		if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return nil, fmt.Errorf("set failed: %w", err)
		}
		return map[string]interface{}{"key": key, "stored": true}, nil

	case "delete":
		deleted, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("delete failed: %w", err)
		}
		return map[string]interface{}{"key": key, "deleted": deleted > 0}, nil

	default:
		return nil, fmt.Errorf("unsupported operation '%s'", operation)
	}
}
