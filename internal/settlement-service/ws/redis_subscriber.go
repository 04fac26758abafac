package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal Pub/Sub e repassa cada events.Broadcast ao Hub.
// Permite que o worker de placares (outro processo) alimente os clientes conectados aqui.
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var b events.Broadcast
				if err := json.Unmarshal([]byte(msg.Payload), &b); err != nil {
					log.Warn("ws subscriber unmarshal", zap.Error(err))
					continue
				}
				hub.Broadcast(b)
			}
		}
	}()
}
