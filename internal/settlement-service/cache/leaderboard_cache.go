package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda o ranking global no Redis por alguns segundos
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func keyLeaderboard(limit int) string { return "leaderboard:global:" + strconv.Itoa(limit) }

func (c *Cache) GetLeaderboard(ctx context.Context, limit int, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyLeaderboard(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetLeaderboard(ctx context.Context, limit int, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, keyLeaderboard(limit), b, ttl).Err()
}
