package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/bets"
	"github.com/radieske/scoreleague/internal/settlement-service/ledger"
	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/producer"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
	"github.com/radieske/scoreleague/internal/settlement-service/settlement"
	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// fakeReader entrega as mensagens e cancela o contexto quando acabam
type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) reasons() []string {
	var out []string
	for _, m := range w.msgs {
		for _, h := range m.Headers {
			if h.Key == "reason" {
				out = append(out, string(h.Value))
			}
		}
	}
	return out
}

type flakySettler struct {
	failures int
	calls    int
}

func (s *flakySettler) SettleMatch(_ context.Context, matchID string, h, a int) (*settlement.Summary, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection reset")
	}
	return &settlement.Summary{MatchID: matchID, Score: model.Score{Home: h, Away: a}}, nil
}

func (s *flakySettler) ResumeMatch(_ context.Context, matchID string, h, a int) (*settlement.Summary, error) {
	return nil, errors.New("unexpected resume")
}

// slowPending falha as primeiras leituras de apostas pendentes
type slowPending struct {
	*repo.Memory
	failures int
}

func (s *slowPending) PendingForMatch(ctx context.Context, matchID string) ([]*model.Bet, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("connection reset")
	}
	return s.Memory.PendingForMatch(ctx, matchID)
}

func resultMsg(t *testing.T, matchID string, h, a int) kafka.Message {
	t.Helper()
	b, err := json.Marshal(events.MatchResult{MatchID: matchID, HomeGoals: h, AwayGoals: a})
	require.NoError(t, err)
	return kafka.Message{Topic: "match_results", Key: []byte(matchID), Value: b}
}

func run(t *testing.T, p *Processor, msgs ...kafka.Message) *fakeReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{msgs: msgs, cancel: cancel}
	p.Reader = r
	require.ErrorIs(t, p.Run(ctx), context.Canceled)
	return r
}

func TestProcessorSettlesThroughOrchestrator(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	led := ledger.New(zap.NewNop(), store)
	rec := &producer.Recorder{}
	orch := settlement.New(zap.NewNop(), store, led, bets.NewStore(store), rec)

	u, _, err := led.Login(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, store.UpsertMatch(ctx, &model.Match{ID: "m1", HomeTeam: "A", AwayTeam: "B", Status: model.MatchLive}))
	_, _, err = orch.PlaceBet(ctx, u.ID, []model.Leg{{MatchID: "m1", Market: "1x2", Selection: "1", Odds: 2.1}}, 100, nil)
	require.NoError(t, err)

	var settled, skipped int
	dlq := &fakeWriter{}
	p := &Processor{
		Log:        zap.NewNop(),
		DLQ:        dlq,
		Settler:    orch,
		MaxRetries: 2,
		OnSettled:  func() { settled++ },
		OnSkipped:  func(string) { skipped++ },
	}
	r := run(t, p, resultMsg(t, "m1", 2, 1), resultMsg(t, "m1", 2, 1))

	require.Equal(t, 1, settled)
	require.Equal(t, 1, skipped)
	require.Len(t, r.committed, 2)
	require.Empty(t, dlq.msgs)

	got, err := led.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1110), got.Coins)
}

func TestProcessorRetriesThenSucceeds(t *testing.T) {
	settler := &flakySettler{failures: 2}
	dlq := &fakeWriter{}
	p := &Processor{Log: zap.NewNop(), DLQ: dlq, Settler: settler, MaxRetries: 3, Backoff: time.Millisecond}
	run(t, p, resultMsg(t, "m1", 0, 0))

	require.Equal(t, 3, settler.calls)
	require.Empty(t, dlq.msgs)
}

func TestProcessorDeadLetters(t *testing.T) {
	settler := &flakySettler{failures: 100}
	dlq := &fakeWriter{}
	var stages []string
	p := &Processor{
		Log:        zap.NewNop(),
		DLQ:        dlq,
		Settler:    settler,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		OnError:    func(s string) { stages = append(stages, s) },
	}
	r := run(t, p,
		kafka.Message{Value: []byte("{not json")},
		resultMsg(t, "", 1, 0),
		resultMsg(t, "m1", -1, 0),
		resultMsg(t, "m2", 1, 1),
	)

	require.Equal(t, 3, settler.calls) // 1 + 2 retentativas
	require.Equal(t, []string{"decode", "validate", "validate", "settle"}, dlq.reasons())
	require.Equal(t, []string{"decode", "validate", "validate", "settle"}, stages)
	require.Len(t, r.committed, 4)
}

func TestProcessorRejectsUnknownMatch(t *testing.T) {
	store := repo.NewMemory()
	led := ledger.New(zap.NewNop(), store)
	orch := settlement.New(zap.NewNop(), store, led, bets.NewStore(store), nil)
	dlq := &fakeWriter{}
	p := &Processor{Log: zap.NewNop(), DLQ: dlq, Settler: orch, MaxRetries: 5}
	run(t, p, resultMsg(t, "ghost", 1, 0))
	require.Equal(t, []string{"rejected"}, dlq.reasons())
}

func TestProcessorResumesInterruptedSettlement(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	flaky := &slowPending{Memory: store, failures: 3}
	led := ledger.New(zap.NewNop(), store)
	rec := &producer.Recorder{}
	orch := settlement.New(zap.NewNop(), store, led, bets.NewStore(flaky), rec)

	u, _, err := led.Login(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, store.UpsertMatch(ctx, &model.Match{ID: "m1", HomeTeam: "A", AwayTeam: "B", Status: model.MatchLive}))
	_, _, err = orch.PlaceBet(ctx, u.ID, []model.Leg{{MatchID: "m1", Market: "1x2", Selection: "1", Odds: 2.1}}, 100, nil)
	require.NoError(t, err)

	var settled, skipped int
	dlq := &fakeWriter{}
	p := &Processor{
		Log:        zap.NewNop(),
		DLQ:        dlq,
		Settler:    orch,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		OnSettled:  func() { settled++ },
		OnSkipped:  func(string) { skipped++ },
	}
	// a primeira tentativa grava o placar e esgota as leituras; a retentativa retoma
	run(t, p, resultMsg(t, "m1", 2, 0))

	require.Equal(t, 1, settled)
	require.Zero(t, skipped)
	require.Empty(t, dlq.msgs)
	require.Equal(t, 1, rec.Count(events.BetSettledEvent))

	got, err := led.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1110), got.Coins)
}

func TestProcessorSkipsConflictingScore(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	led := ledger.New(zap.NewNop(), store)
	orch := settlement.New(zap.NewNop(), store, led, bets.NewStore(store), nil)
	require.NoError(t, store.UpsertMatch(ctx, &model.Match{ID: "m1", Status: model.MatchLive}))

	var skipped []string
	dlq := &fakeWriter{}
	p := &Processor{Log: zap.NewNop(), DLQ: dlq, Settler: orch, OnSkipped: func(r string) { skipped = append(skipped, r) }}
	run(t, p, resultMsg(t, "m1", 1, 0), resultMsg(t, "m1", 3, 3))

	require.Equal(t, []string{"already_settled"}, skipped)
	require.Empty(t, dlq.msgs)
	m, err := store.GetMatch(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, model.Score{Home: 1, Away: 0}, *m.Score)
}
