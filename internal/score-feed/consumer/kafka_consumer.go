package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/settlement"
	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// Reader é o subconjunto de *kafka.Reader usado (commit manual)
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Settler interface {
	SettleMatch(ctx context.Context, matchID string, homeGoals, awayGoals int) (*settlement.Summary, error)
	ResumeMatch(ctx context.Context, matchID string, homeGoals, awayGoals int) (*settlement.Summary, error)
}

// Processor consome placares finais do Kafka e liquida o jogo correspondente.
// Erros transitórios são repetidos até MaxRetries; depois a mensagem vai para a DLQ.
type Processor struct {
	Log        *zap.Logger
	Reader     Reader
	DLQ        Writer // opcional
	Settler    Settler
	MaxRetries int
	Backoff    time.Duration

	OnConsumed func()              // métricas (counter++)
	OnSettled  func()              // métricas
	OnSkipped  func(reason string) // jogo já liquidado sem apostas a retomar
	OnError    func(stage string)  // métricas por fase
}

// Run inicia o loop principal de consumo
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		p.handle(ctx, m)

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

func (p *Processor) handle(ctx context.Context, m kafka.Message) {
	var res events.MatchResult
	if err := json.Unmarshal(m.Value, &res); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, "decode", err)
		return
	}
	res.MatchID = strings.TrimSpace(res.MatchID)
	if res.MatchID == "" || res.HomeGoals < 0 || res.AwayGoals < 0 {
		err := fmt.Errorf("match %q score %d-%d: %w", res.MatchID, res.HomeGoals, res.AwayGoals, model.ErrInvalidArgument)
		p.Log.Warn("invalid match result", zap.Error(err))
		p.fail("validate")
		p.deadLetter(ctx, m, "validate", err)
		return
	}

	log := p.Log.With(zap.String("matchId", res.MatchID))
	// reentrega de um jogo já finalizado vira retomada: apostas que ficaram pending
	// numa liquidação interrompida saem agora
	resume := false
	for attempt := 0; ; attempt++ {
		apply := p.Settler.SettleMatch
		if resume {
			apply = p.Settler.ResumeMatch
		}
		sum, err := apply(ctx, res.MatchID, res.HomeGoals, res.AwayGoals)
		switch {
		case err == nil && resume && sum.Settled == 0:
			log.Info("match already settled, skipping")
			if p.OnSkipped != nil {
				p.OnSkipped("already_settled")
			}
			return
		case err == nil:
			log.Info("match result applied",
				zap.Int("settled", sum.Settled),
				zap.Int("won", sum.Won),
				zap.Bool("resumed", resume),
			)
			if p.OnSettled != nil {
				p.OnSettled()
			}
			return
		case errors.Is(err, model.ErrAlreadySettled) && !resume:
			resume = true
			attempt--
			continue
		case errors.Is(err, model.ErrAlreadySettled):
			// placar do feed diverge do gravado
			log.Warn("match already settled with another score, skipping", zap.Error(err))
			if p.OnSkipped != nil {
				p.OnSkipped("already_settled")
			}
			return
		case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrInvalidArgument):
			log.Warn("match result rejected", zap.Error(err))
			p.fail("rejected")
			p.deadLetter(ctx, m, "rejected", err)
			return
		case attempt >= p.MaxRetries || ctx.Err() != nil:
			log.Error("settle failed, giving up", zap.Int("attempts", attempt+1), zap.Error(err))
			p.fail("settle")
			p.deadLetter(ctx, m, "settle", err)
			return
		}

		log.Warn("settle failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(p.Backoff * time.Duration(attempt+1)):
		}
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, reason string, cause error) {
	if p.DLQ == nil {
		return
	}
	dlq := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(reason)},
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source-topic", Value: []byte(m.Topic)},
		},
		Time: time.Now(),
	}
	if err := p.DLQ.WriteMessages(ctx, dlq); err != nil {
		p.Log.Error("dlq write failed", zap.String("reason", reason), zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
