package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/scoreleague/internal/shared/kafka"
	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// KafkaPublisher encapsula o writer Kafka e o logger.
type KafkaPublisher struct {
	writer interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	}
	closer func() error
	log    *zap.Logger
}

// NewKafkaPublisher cria um publisher para o tópico de placares.
// Em ambiente local/dev garante a existência do tópico antes de publicar.
func NewKafkaPublisher(brokers []string, topic, env string, log *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}

	if env == "local" || env == "dev" {
		if err := ensureTopic(brokers[0], topic, log); err != nil {
			log.Warn("failed to ensure kafka topic", zap.String("topic", topic), zap.Error(err))
		}
	}

	w := skafka.NewWriter(brokers, topic)
	w.BatchTimeout = 10 * time.Millisecond
	w.ReadTimeout = 10 * time.Second
	w.WriteTimeout = 10 * time.Second

	return &KafkaPublisher{writer: w, closer: w.Close, log: log}, nil
}

// ensureTopic cria o tópico pelo controller do cluster (single-broker: 1 partição, RF 1)
func ensureTopic(broker, topic string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	cconn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return err
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	if err == nil {
		log.Info("kafka topic created", zap.String("topic", topic))
	}
	return nil
}

// Publish envia o placar final; a chave é o matchId para manter a ordem por jogo
func (p *KafkaPublisher) Publish(ctx context.Context, r events.MatchResult) error {
	value, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, skafka.Message(r.MatchID, value)); err != nil {
		p.log.Error("failed to publish match result", zap.String("matchId", r.MatchID), zap.Error(err))
		return err
	}
	p.log.Debug("published match result", zap.String("matchId", r.MatchID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
