package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// Publisher publica bytes num canal Pub/Sub
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// RedisSink envelopa o evento com as chaves de assinatura do hub WebSocket
type RedisSink struct {
	pub     Publisher
	channel string
}

func NewRedisSink(pub Publisher, channel string) *RedisSink {
	return &RedisSink{pub: pub, channel: channel}
}

func (s *RedisSink) Emit(ctx context.Context, name string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	b, err := json.Marshal(events.Broadcast{
		Event:   name,
		Keys:    BroadcastKeys(payload),
		Payload: raw,
	})
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	return s.pub.Publish(ctx, s.channel, b)
}

// BroadcastKeys define quem recebe o evento no WebSocket
func BroadcastKeys(payload any) []string {
	keys := []string{"all"}
	switch p := payload.(type) {
	case events.BetPlaced:
		keys = append(keys, "user:"+p.Bet.UserID)
	case events.BetSettled:
		keys = append(keys, "user:"+p.Bet.UserID)
		for _, id := range betMatchIDs(p.Bet) {
			keys = append(keys, "match:"+id)
		}
	case events.MatchSettled:
		keys = append(keys, "match:"+p.MatchID)
	case events.LeagueCreated:
		keys = append(keys, "league:"+p.League.ID)
	case events.LeagueUpdated:
		keys = append(keys, "league:"+p.League.ID, "user:"+p.UserID)
	}
	return keys
}

func betMatchIDs(b events.Bet) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range b.Legs {
		if _, ok := seen[l.MatchID]; ok {
			continue
		}
		seen[l.MatchID] = struct{}{}
		out = append(out, l.MatchID)
	}
	return out
}
