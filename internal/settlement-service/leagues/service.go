// Package leagues implementa ligas privadas com código de convite e os rankings.
package leagues

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
	"github.com/radieske/scoreleague/pkg/contracts/events"
)

const (
	InviteCodeLen  = 8
	inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	createAttempts = 5
)

// Standing é uma linha do ranking
type Standing struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Coins       int64  `json:"coins"`
	Bets        int64  `json:"bets"`
	Winnings    int64  `json:"winnings"`
	TotalStaked int64  `json:"totalStaked,omitempty"`
}

type Service struct {
	log     *zap.Logger
	store   repo.Store
	sink    events.Sink // opcional
	now     func() time.Time
	newCode func() (string, error)
}

func NewService(log *zap.Logger, store repo.Store, sink events.Sink) *Service {
	return &Service{
		log:     log,
		store:   store,
		sink:    sink,
		now:     time.Now,
		newCode: InviteCode,
	}
}

// InviteCode gera 8 caracteres maiúsculos/dígitos
func InviteCode() (string, error) {
	buf := make([]byte, InviteCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}

// Create cria a liga com o criador como primeiro membro
func (s *Service) Create(ctx context.Context, creatorID, name, description string) (*model.League, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("league name is required: %w", model.ErrInvalidArgument)
	}
	if _, err := s.store.GetUser(ctx, creatorID); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < createAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("invite code: %w", err)
		}
		l := &model.League{
			ID:          uuid.NewString(),
			Name:        name,
			Description: strings.TrimSpace(description),
			CreatorID:   creatorID,
			InviteCode:  code,
			Members:     []string{creatorID},
			MaxMembers:  model.DefaultLeagueMaxMembers,
			CreatedAt:   s.now().UTC(),
		}
		// colisão de código: tenta outro
		if lastErr = s.store.CreateLeague(ctx, l); lastErr == nil {
			s.log.Info("league created", zap.String("leagueId", l.ID), zap.String("creatorId", creatorID))
			s.emit(ctx, events.LeagueCreatedEvent, events.LeagueCreated{League: toEventLeague(l), Ts: s.now().UTC()})
			return l, nil
		}
		if !errors.Is(lastErr, model.ErrInvalidArgument) {
			break
		}
	}
	return nil, fmt.Errorf("create league: %w", lastErr)
}

// Join entra na liga pelo código de convite (case-insensitive)
func (s *Service) Join(ctx context.Context, inviteCode, userID string) (*model.League, error) {
	code := strings.ToUpper(strings.TrimSpace(inviteCode))
	if code == "" {
		return nil, fmt.Errorf("invite code is required: %w", model.ErrInvalidArgument)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	l, err := s.store.GetLeagueByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	l, err = s.store.AddMember(ctx, l.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("join league %s: %w", code, err)
	}
	s.log.Info("league joined", zap.String("leagueId", l.ID), zap.String("userId", userID))
	s.emit(ctx, events.LeagueUpdatedEvent, events.LeagueUpdated{League: toEventLeague(l), UserID: userID, Ts: s.now().UTC()})
	return l, nil
}

func (s *Service) emit(ctx context.Context, name string, payload any) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Emit(ctx, name, payload); err != nil {
		s.log.Warn("emit event failed", zap.String("event", name), zap.Error(err))
	}
}

func toEventLeague(l *model.League) events.League {
	return events.League{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		CreatorID:   l.CreatorID,
		InviteCode:  l.InviteCode,
		Members:     append([]string(nil), l.Members...),
		MaxMembers:  l.MaxMembers,
		CreatedAt:   l.CreatedAt,
	}
}

func (s *Service) ForUser(ctx context.Context, userID string) ([]*model.League, error) {
	return s.store.LeaguesForUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, leagueID string) (*model.League, error) {
	return s.store.GetLeague(ctx, leagueID)
}

// Leaderboard ordena os membros por saldo, com estatísticas só das apostas marcadas na liga
func (s *Service) Leaderboard(ctx context.Context, leagueID string) ([]Standing, error) {
	l, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	out := make([]Standing, 0, len(l.Members))
	for _, id := range l.Members {
		u, err := s.store.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		list, err := s.store.BetsByUser(ctx, id)
		if err != nil {
			return nil, err
		}
		st := Standing{UserID: u.ID, Username: u.Username, Coins: u.Coins}
		for _, b := range list {
			if !b.InLeague(leagueID) {
				continue
			}
			st.Bets++
			st.TotalStaked += b.Stake
			if b.Status == model.BetWon {
				st.Winnings += b.PotentialWin
			}
		}
		out = append(out, st)
	}
	rank(out)
	return out, nil
}

// Global é o ranking de todos os usuários por saldo; limit <= 0 devolve todos
func (s *Service) Global(ctx context.Context, limit int) ([]Standing, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(users))
	for _, u := range users {
		out = append(out, Standing{
			UserID:   u.ID,
			Username: u.Username,
			Coins:    u.Coins,
			Bets:     u.Stats.TotalBets,
			Winnings: u.Stats.TotalWinnings,
		})
	}
	rank(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func rank(out []Standing) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Coins != out[j].Coins {
			return out[i].Coins > out[j].Coins
		}
		return out[i].Username < out[j].Username
	})
	for i := range out {
		out[i].Rank = i + 1
	}
}
