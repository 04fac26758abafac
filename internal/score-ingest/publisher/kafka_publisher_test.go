package publisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/pkg/contracts/events"
)

type captureWriter struct{ msgs []kafka.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublishKeysByMatch(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{writer: w, log: zap.NewNop()}

	require.NoError(t, p.Publish(context.Background(), events.MatchResult{MatchID: "m7", HomeGoals: 3, AwayGoals: 1}))
	require.Len(t, w.msgs, 1)
	require.Equal(t, "m7", string(w.msgs[0].Key))

	var got events.MatchResult
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	require.Equal(t, 3, got.HomeGoals)
	require.NoError(t, p.Close())
}

func TestNewKafkaPublisherNeedsBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "match_results", "prod", zap.NewNop())
	require.Error(t, err)
}
