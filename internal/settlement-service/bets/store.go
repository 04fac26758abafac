// Package bets cuida do ciclo de vida das apostas: criação pending e liquidação única para won/lost.
package bets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
	"github.com/radieske/scoreleague/internal/shared/keylock"
)

// MinOdds é a menor odd aceita por perna
const MinOdds = 1.0

type Store struct {
	bets  repo.Bets
	locks *keylock.Locker
	now   func() time.Time
	newID func() string
}

type Option func(*Store)

// WithClock troca o relógio (testes)
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func NewStore(b repo.Bets, opts ...Option) *Store {
	s := &Store{
		bets:  b,
		locks: keylock.New(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Validate checa stake e pernas antes de qualquer débito
func Validate(legs []model.Leg, stake int64) error {
	if stake <= 0 {
		return fmt.Errorf("stake %d must be positive: %w", stake, model.ErrInvalidArgument)
	}
	if len(legs) == 0 {
		return fmt.Errorf("bet needs at least one leg: %w", model.ErrInvalidArgument)
	}
	for i, l := range legs {
		switch {
		case strings.TrimSpace(l.MatchID) == "":
			return fmt.Errorf("leg %d: missing matchId: %w", i, model.ErrInvalidArgument)
		case strings.TrimSpace(l.Market) == "" || strings.TrimSpace(l.Selection) == "":
			return fmt.Errorf("leg %d: missing market or selection: %w", i, model.ErrInvalidArgument)
		case l.Odds < MinOdds:
			return fmt.Errorf("leg %d: odds %v below %v: %w", i, l.Odds, MinOdds, model.ErrInvalidArgument)
		}
	}
	return nil
}

// Quote calcula a odd combinada (produto) e o prêmio potencial arredondado half-up
func Quote(legs []model.Leg, stake int64) (combined float64, potentialWin int64) {
	odds := decimal.NewFromInt(1)
	for _, l := range legs {
		odds = odds.Mul(decimal.NewFromFloat(l.Odds))
	}
	// Round usa half away from zero; com valores positivos é half-up
	win := decimal.NewFromInt(stake).Mul(odds).Round(0)
	return odds.InexactFloat64(), win.IntPart()
}

// Place grava uma aposta pending. O débito do stake é responsabilidade de quem chama.
func (s *Store) Place(ctx context.Context, userID string, legs []model.Leg, stake int64, leagueIDs []string) (*model.Bet, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("missing userId: %w", model.ErrInvalidArgument)
	}
	if err := Validate(legs, stake); err != nil {
		return nil, err
	}

	combined, win := Quote(legs, stake)
	b := &model.Bet{
		ID:           s.newID(),
		UserID:       userID,
		Legs:         append([]model.Leg(nil), legs...),
		Stake:        stake,
		CombinedOdds: combined,
		PotentialWin: win,
		Status:       model.BetPending,
		LeagueIDs:    dedup(leagueIDs),
		PlacedAt:     s.now().UTC(),
	}
	if err := s.bets.CreateBet(ctx, b); err != nil {
		return nil, fmt.Errorf("create bet: %w", err)
	}
	return b.Clone(), nil
}

func dedup(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Settle leva a aposta de pending para won/lost uma única vez, creditando o prêmio
// junto quando ganha. Quem perde a corrida recebe model.ErrAlreadySettled.
func (s *Store) Settle(ctx context.Context, betID string, to model.BetStatus) (*model.Bet, *model.User, error) {
	if !to.Terminal() {
		return nil, nil, fmt.Errorf("status %q is not terminal: %w", to, model.ErrInvalidArgument)
	}
	unlock := s.locks.Lock(betID)
	defer unlock()

	b, u, err := s.bets.SettleBet(ctx, betID, to, s.now().UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("settle %s: %w", betID, err)
	}
	return b, u, nil
}

func (s *Store) PendingForMatch(ctx context.Context, matchID string) ([]*model.Bet, error) {
	return s.bets.PendingForMatch(ctx, matchID)
}

// ByUser retorna as apostas do usuário, mais recentes primeiro
func (s *Store) ByUser(ctx context.Context, userID string) ([]*model.Bet, error) {
	return s.bets.BetsByUser(ctx, userID)
}

func (s *Store) Get(ctx context.Context, betID string) (*model.Bet, error) {
	return s.bets.GetBet(ctx, betID)
}
