// Package producer contém os destinos dos eventos de domínio (events.Sink).
package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/scoreleague/internal/shared/kafka"
	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// MessageWriter é o subconjunto de *kafka.Writer usado pelo sink
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publica cada evento no seu tópico (um writer por evento)
type KafkaSink struct {
	writers map[string]MessageWriter
}

func NewKafkaSink(writers map[string]MessageWriter) *KafkaSink {
	return &KafkaSink{writers: writers}
}

// Topics mapeia nome do evento -> tópico
type Topics struct {
	BetPlaced    string
	BetSettled   string
	MatchSettled string
	Leagues      string // leagueCreated e leagueUpdated
}

// NewKafkaWriters cria os writers de produção. Quem chama fecha os writers no shutdown.
func NewKafkaWriters(brokers []string, t Topics) (map[string]MessageWriter, []*kafka.Writer) {
	byEvent := map[string]string{
		events.BetPlacedEvent:     t.BetPlaced,
		events.BetSettledEvent:    t.BetSettled,
		events.MatchSettledEvent:  t.MatchSettled,
		events.LeagueCreatedEvent: t.Leagues,
		events.LeagueUpdatedEvent: t.Leagues,
	}
	writers := make(map[string]MessageWriter, len(byEvent))
	byTopic := make(map[string]*kafka.Writer)
	all := make([]*kafka.Writer, 0, len(byEvent))
	for name, topic := range byEvent {
		if topic == "" {
			continue
		}
		w, ok := byTopic[topic]
		if !ok {
			w = skafka.NewWriter(brokers, topic)
			byTopic[topic] = w
			all = append(all, w)
		}
		writers[name] = w
	}
	return writers, all
}

func (s *KafkaSink) Emit(ctx context.Context, name string, payload any) error {
	w, ok := s.writers[name]
	if !ok {
		return fmt.Errorf("no kafka topic for event %q", name)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := w.WriteMessages(ctx, skafka.Message(messageKey(payload), b)); err != nil {
		return fmt.Errorf("kafka write %s: %w", name, err)
	}
	return nil
}

// messageKey mantém eventos da mesma aposta/jogo na mesma partição
func messageKey(payload any) string {
	switch p := payload.(type) {
	case events.BetPlaced:
		return p.Bet.ID
	case events.BetSettled:
		return p.Bet.ID
	case events.MatchSettled:
		return p.MatchID
	case events.LeagueCreated:
		return p.League.ID
	case events.LeagueUpdated:
		return p.League.ID
	}
	return ""
}
