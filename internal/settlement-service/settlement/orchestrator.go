// Package settlement liquida apostas a partir do placar final de um jogo.
//
// Ordem das garantias:
//   - um lock por jogo serializa SettleMatch e PlaceBet do mesmo jogo
//   - FinishMatch (CAS no repositório) grava o placar uma única vez
//   - a transição pending -> won/lost é o ponto de serialização por aposta;
//     o crédito do prêmio é gravado na mesma operação do CAS
//   - ResumeMatch retoma as apostas de um jogo cujo placar já foi gravado
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/bets"
	"github.com/radieske/scoreleague/internal/settlement-service/ledger"
	"github.com/radieske/scoreleague/internal/settlement-service/market"
	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
	"github.com/radieske/scoreleague/internal/settlement-service/result"
	"github.com/radieske/scoreleague/internal/shared/keylock"
	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// Motivos usados em OnSkip (label de métrica)
const (
	SkipUnresolved     = "unresolved"
	SkipAlreadySettled = "already_settled"
	SkipStore          = "store"
)

// tentativas de PendingForMatch depois que o placar já foi gravado
const pendingAttempts = 3

// Hooks são callbacks de métricas, definidos no main
type Hooks struct {
	OnBetPlaced    func()
	OnBetSettled   func(status model.BetStatus)
	OnSkip         func(reason string)
	OnMatchSettled func()
}

// Summary é o retorno de SettleMatch
type Summary struct {
	MatchID   string           `json:"matchId"`
	Score     model.Score      `json:"score"`
	ResultSet result.ResultSet `json:"resultSet"`
	Settled   int              `json:"settled"`
	Won       int              `json:"won"`
	Pending   int              `json:"pending"` // continuam aguardando outros jogos ou mercado não suportado
	Failed    int              `json:"failed"`
}

type Orchestrator struct {
	log    *zap.Logger
	store  repo.Store
	ledger *ledger.Ledger
	bets   *bets.Store
	sink   events.Sink
	locks  *keylock.Locker
	now    func() time.Time
	wait   time.Duration // espera entre tentativas de PendingForMatch

	Hooks Hooks
}

func New(log *zap.Logger, store repo.Store, l *ledger.Ledger, b *bets.Store, sink events.Sink) *Orchestrator {
	return &Orchestrator{
		log:    log,
		store:  store,
		ledger: l,
		bets:   b,
		sink:   sink,
		locks:  keylock.New(),
		now:    time.Now,
		wait:   100 * time.Millisecond,
	}
}

// SettleMatch grava o placar e liquida todas as apostas pendentes do jogo
func (o *Orchestrator) SettleMatch(ctx context.Context, matchID string, homeGoals, awayGoals int) (*Summary, error) {
	if homeGoals < 0 || awayGoals < 0 {
		return nil, fmt.Errorf("score %d-%d: %w", homeGoals, awayGoals, model.ErrInvalidArgument)
	}

	unlock := o.locks.Lock(matchID)
	defer unlock()

	m, err := o.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Finished() {
		return nil, fmt.Errorf("match %s: %w", matchID, model.ErrAlreadySettled)
	}

	score := model.Score{Home: homeGoals, Away: awayGoals}
	if _, err := o.store.FinishMatch(ctx, matchID, score); err != nil {
		return nil, err
	}

	sum, err := o.settlePending(ctx, matchID, score)
	if err != nil {
		return nil, err
	}
	o.finish(ctx, sum)
	return sum, nil
}

// ResumeMatch liquida as apostas que ficaram pending num jogo já finalizado, por exemplo
// quando SettleMatch gravou o placar e falhou ao ler as apostas. O placar informado precisa
// ser o gravado; placar diferente retorna model.ErrAlreadySettled.
// matchSettled só é emitido de novo se alguma aposta foi liquidada.
func (o *Orchestrator) ResumeMatch(ctx context.Context, matchID string, homeGoals, awayGoals int) (*Summary, error) {
	unlock := o.locks.Lock(matchID)
	defer unlock()

	m, err := o.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Finished() {
		return nil, fmt.Errorf("match %s is not finished: %w", matchID, model.ErrInvalidArgument)
	}
	if m.Score.Home != homeGoals || m.Score.Away != awayGoals {
		return nil, fmt.Errorf("match %s recorded %d-%d, got %d-%d: %w",
			matchID, m.Score.Home, m.Score.Away, homeGoals, awayGoals, model.ErrAlreadySettled)
	}

	sum, err := o.settlePending(ctx, matchID, *m.Score)
	if err != nil {
		return nil, err
	}
	if sum.Settled > 0 {
		o.log.Info("match settlement resumed", zap.String("matchId", matchID))
		o.finish(ctx, sum)
	}
	return sum, nil
}

// pendingFor repete a leitura: o placar já está gravado e um erro aqui deixaria as apostas pendentes
func (o *Orchestrator) pendingFor(ctx context.Context, matchID string) ([]*model.Bet, error) {
	var err error
	for attempt := 1; ; attempt++ {
		var pending []*model.Bet
		if pending, err = o.bets.PendingForMatch(ctx, matchID); err == nil {
			return pending, nil
		}
		if attempt >= pendingAttempts {
			break
		}
		o.log.Warn("load pending bets failed, retrying",
			zap.String("matchId", matchID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("pending bets for %s: %w", matchID, ctx.Err())
		case <-time.After(o.wait * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("pending bets for %s: %w", matchID, err)
}

// settlePending percorre as apostas pendentes do jogo com o placar gravado
func (o *Orchestrator) settlePending(ctx context.Context, matchID string, score model.Score) (*Summary, error) {
	rs := result.FromScore(score)
	sum := &Summary{MatchID: matchID, Score: score, ResultSet: rs}

	pending, err := o.pendingFor(ctx, matchID)
	if err != nil {
		return nil, err
	}

	results := map[string]*result.ResultSet{matchID: &rs}
	for _, b := range pending {
		status, err := o.resolve(ctx, b, results)
		if err != nil {
			sum.Failed++
			o.skip(SkipStore)
			o.log.Warn("resolve bet failed", zap.String("betId", b.ID), zap.Error(err))
			continue
		}
		if status == model.BetPending {
			sum.Pending++
			o.skip(SkipUnresolved)
			continue
		}

		if _, err := o.settle(ctx, b.ID, status); err != nil {
			if errors.Is(err, model.ErrAlreadySettled) {
				o.skip(SkipAlreadySettled)
				continue
			}
			// a aposta continua pending e sai numa próxima ResumeMatch
			sum.Failed++
			o.skip(SkipStore)
			o.log.Error("settle bet failed", zap.String("betId", b.ID), zap.Error(err))
			continue
		}
		sum.Settled++
		if status == model.BetWon {
			sum.Won++
		}
	}
	return sum, nil
}

func (o *Orchestrator) finish(ctx context.Context, sum *Summary) {
	o.log.Info("match settled",
		zap.String("matchId", sum.MatchID),
		zap.Int("home", sum.Score.Home),
		zap.Int("away", sum.Score.Away),
		zap.Int("settled", sum.Settled),
		zap.Int("won", sum.Won),
		zap.Int("pending", sum.Pending),
		zap.Int("failed", sum.Failed),
	)
	if o.Hooks.OnMatchSettled != nil {
		o.Hooks.OnMatchSettled()
	}
	o.emit(ctx, events.MatchSettledEvent, events.MatchSettled{
		MatchID:   sum.MatchID,
		Score:     events.Score{Home: sum.Score.Home, Away: sum.Score.Away},
		ResultSet: toEventResultSet(sum.ResultSet),
		Settled:   sum.Settled,
		Won:       sum.Won,
		Ts:        o.now().UTC(),
	})
}

// resolve decide o status de uma aposta. Cada perna usa o resultado do seu próprio jogo;
// qualquer perna sem resultado (jogo aberto ou mercado não suportado) mantém a aposta pending.
func (o *Orchestrator) resolve(ctx context.Context, b *model.Bet, results map[string]*result.ResultSet) (model.BetStatus, error) {
	allWon := true
	for _, leg := range b.Legs {
		pick, err := market.Parse(leg.Market, leg.Selection)
		if err != nil {
			o.log.Debug("unresolvable leg", zap.String("betId", b.ID), zap.Error(err))
			return model.BetPending, nil
		}

		rs, ok := results[leg.MatchID]
		if !ok {
			m, err := o.store.GetMatch(ctx, leg.MatchID)
			switch {
			case errors.Is(err, model.ErrNotFound):
				rs = nil
			case err != nil:
				return model.BetPending, err
			case m.Finished():
				v := result.FromScore(*m.Score)
				rs = &v
			}
			results[leg.MatchID] = rs
		}
		if rs == nil {
			return model.BetPending, nil
		}

		won, err := rs.Wins(pick)
		if err != nil {
			return model.BetPending, nil
		}
		if !won {
			allWon = false
		}
	}
	if allWon {
		return model.BetWon, nil
	}
	return model.BetLost, nil
}

// settle transiciona a aposta e credita o prêmio numa operação só do repositório
func (o *Orchestrator) settle(ctx context.Context, betID string, status model.BetStatus) (*model.Bet, error) {
	b, u, err := o.bets.Settle(ctx, betID, status)
	if err != nil {
		return nil, err
	}
	if o.Hooks.OnBetSettled != nil {
		o.Hooks.OnBetSettled(status)
	}
	if status == model.BetWon {
		o.log.Info("bet won",
			zap.String("betId", b.ID),
			zap.String("userId", b.UserID),
			zap.Int64("amount", b.PotentialWin),
		)
	}

	o.emit(ctx, events.BetSettledEvent, events.BetSettled{
		Bet:  toEventBet(b),
		User: toEventUser(u, b.UserID),
		Ts:   o.now().UTC(),
	})
	return b, nil
}

// SettleBet liquida manualmente uma aposta (admin)
func (o *Orchestrator) SettleBet(ctx context.Context, betID string, status model.BetStatus) (*model.Bet, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("status %q: %w", status, model.ErrInvalidArgument)
	}
	b, err := o.settle(ctx, betID, status)
	if err != nil {
		if errors.Is(err, model.ErrAlreadySettled) {
			o.skip(SkipAlreadySettled)
		}
		return nil, err
	}
	o.log.Info("bet settled manually", zap.String("betId", betID), zap.String("status", string(status)))
	return b, nil
}

// PlaceBet debita o stake e grava a aposta como uma operação só: se a gravação falhar o stake volta.
// Segura o lock de todos os jogos apostados para não competir com uma liquidação em andamento.
func (o *Orchestrator) PlaceBet(ctx context.Context, userID string, legs []model.Leg, stake int64, leagueIDs []string) (*model.Bet, *model.User, error) {
	if err := bets.Validate(legs, stake); err != nil {
		return nil, nil, err
	}
	if _, err := o.ledger.Get(ctx, userID); err != nil {
		return nil, nil, err
	}
	for _, id := range leagueIDs {
		l, err := o.store.GetLeague(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !l.HasMember(userID) {
			return nil, nil, fmt.Errorf("user %s is not a member of league %s: %w", userID, id, model.ErrInvalidArgument)
		}
	}

	matchIDs := (&model.Bet{Legs: legs}).MatchIDs()
	unlock := o.locks.LockAll(matchIDs...)
	defer unlock()

	for _, id := range matchIDs {
		m, err := o.store.GetMatch(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if m.Finished() {
			return nil, nil, fmt.Errorf("match %s: %w", id, model.ErrMatchClosed)
		}
	}

	if _, err := o.ledger.Debit(ctx, userID, stake); err != nil {
		return nil, nil, err
	}
	b, err := o.bets.Place(ctx, userID, legs, stake, leagueIDs)
	if err != nil {
		if _, rerr := o.ledger.Refund(ctx, userID, stake); rerr != nil {
			o.log.Error("refund after failed placement",
				zap.String("userId", userID),
				zap.Int64("stake", stake),
				zap.Error(rerr),
			)
		}
		return nil, nil, err
	}

	u, err := o.ledger.Get(ctx, userID)
	if err != nil {
		o.log.Warn("load user after placement", zap.String("userId", userID), zap.Error(err))
	}

	if o.Hooks.OnBetPlaced != nil {
		o.Hooks.OnBetPlaced()
	}
	o.log.Info("bet placed",
		zap.String("betId", b.ID),
		zap.String("userId", userID),
		zap.Int64("stake", stake),
		zap.Int("legs", len(legs)),
	)
	o.emit(ctx, events.BetPlacedEvent, events.BetPlaced{
		Bet:  toEventBet(b),
		User: toEventUser(u, userID),
		Ts:   o.now().UTC(),
	})
	return b, u, nil
}

func (o *Orchestrator) skip(reason string) {
	if o.Hooks.OnSkip != nil {
		o.Hooks.OnSkip(reason)
	}
}

// emit nunca falha a operação; erro do sink só é logado
func (o *Orchestrator) emit(ctx context.Context, name string, payload any) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Emit(ctx, name, payload); err != nil {
		o.log.Warn("emit event failed", zap.String("event", name), zap.Error(err))
	}
}
