// Package cache abre o cliente Redis compartilhado pelo Pub/Sub do hub e pelo cache do ranking.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options complementa o endereço; zero value usa os padrões do go-redis
type Options struct {
	Password    string
	DB          int
	DialTimeout time.Duration
}

// ConnectRedis só devolve o cliente depois de um PING bem-sucedido
func ConnectRedis(ctx context.Context, addr string, opt Options) (*redis.Client, error) {
	if opt.DialTimeout <= 0 {
		opt.DialTimeout = 3 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    opt.Password,
		DB:          opt.DB,
		DialTimeout: opt.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opt.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}
