package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
)

// Memory implementa Store em mapas próprios protegidos por RWMutex.
// Sempre devolve cópias, nunca ponteiros internos.
type Memory struct {
	mu sync.RWMutex

	users      map[string]*model.User
	usernames  map[string]string // username -> id
	matches    map[string]*model.Match
	matchOrder []string

	bets        map[string]*model.Bet
	betsByUser  map[string][]string
	betsByMatch map[string][]string

	leagues     map[string]*model.League
	inviteCodes map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]*model.User),
		usernames:   make(map[string]string),
		matches:     make(map[string]*model.Match),
		bets:        make(map[string]*model.Bet),
		betsByUser:  make(map[string][]string),
		betsByMatch: make(map[string][]string),
		leagues:     make(map[string]*model.League),
		inviteCodes: make(map[string]string),
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, model.ErrNotFound)
}

// ===== users

func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usernames[u.Username]; ok {
		return fmt.Errorf("user %q: %w", u.Username, model.ErrUsernameTaken)
	}
	m.users[u.ID] = u.Clone()
	m.usernames[u.Username] = u.ID
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return u.Clone(), nil
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	id, ok := m.usernames[username]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound("user", username)
	}
	return m.GetUser(ctx, id)
}

func (m *Memory) ListUsers(_ context.Context) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) mutateUser(id string, fn func(u *model.User) error) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	next := u.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	m.users[id] = next
	return next.Clone(), nil
}

func (m *Memory) Debit(_ context.Context, userID string, amount int64) (*model.User, error) {
	return m.mutateUser(userID, func(u *model.User) error {
		if amount > u.Coins {
			return model.ErrInsufficientFunds
		}
		u.Coins -= amount
		u.Stats.TotalBets++
		return nil
	})
}

func (m *Memory) Credit(_ context.Context, userID string, amount int64) (*model.User, error) {
	return m.mutateUser(userID, func(u *model.User) error {
		credit(u, amount)
		return nil
	})
}

func credit(u *model.User, amount int64) {
	u.Coins += amount
	u.Stats.TotalWinnings += amount
	u.Stats.BiggestWin = max(u.Stats.BiggestWin, amount)
}

func (m *Memory) Refund(_ context.Context, userID string, amount int64) (*model.User, error) {
	return m.mutateUser(userID, func(u *model.User) error {
		u.Coins += amount
		if u.Stats.TotalBets > 0 {
			u.Stats.TotalBets--
		}
		return nil
	})
}

// ===== bets

func (m *Memory) CreateBet(_ context.Context, b *model.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bets[b.ID]; ok {
		return fmt.Errorf("bet %q already exists: %w", b.ID, model.ErrInvalidArgument)
	}
	for _, matchID := range b.MatchIDs() {
		if mt, ok := m.matches[matchID]; ok && mt.Finished() {
			return fmt.Errorf("match %q: %w", matchID, model.ErrMatchClosed)
		}
	}
	m.bets[b.ID] = b.Clone()
	m.betsByUser[b.UserID] = append(m.betsByUser[b.UserID], b.ID)
	for _, matchID := range b.MatchIDs() {
		m.betsByMatch[matchID] = append(m.betsByMatch[matchID], b.ID)
	}
	return nil
}

func (m *Memory) GetBet(_ context.Context, id string) (*model.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bets[id]
	if !ok {
		return nil, notFound("bet", id)
	}
	return b.Clone(), nil
}

func (m *Memory) PendingForMatch(_ context.Context, matchID string) ([]*model.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Bet
	// o índice por jogo já é deduplicado na criação (MatchIDs)
	for _, id := range m.betsByMatch[matchID] {
		if b := m.bets[id]; b.Status == model.BetPending {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (m *Memory) BetsByUser(_ context.Context, userID string) ([]*model.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.betsByUser[userID]
	out := make([]*model.Bet, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, m.bets[ids[i]].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out, nil
}

func (m *Memory) SettleBet(_ context.Context, id string, to model.BetStatus, at time.Time) (*model.Bet, *model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[id]
	if !ok {
		return nil, nil, notFound("bet", id)
	}
	if b.Status != model.BetPending {
		return nil, nil, fmt.Errorf("bet %q is %s: %w", id, b.Status, model.ErrAlreadySettled)
	}
	u, ok := m.users[b.UserID]
	if !ok {
		return nil, nil, notFound("user", b.UserID)
	}

	nextUser := u.Clone()
	if to == model.BetWon {
		credit(nextUser, b.PotentialWin)
	}
	next := b.Clone()
	next.Status = to
	next.SettledAt = &at
	m.bets[id] = next
	m.users[b.UserID] = nextUser
	return next.Clone(), nextUser.Clone(), nil
}

// ===== matches

func (m *Memory) UpsertMatch(_ context.Context, mt *model.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.matches[mt.ID]; ok {
		if cur.Finished() {
			return fmt.Errorf("match %q: %w", mt.ID, model.ErrAlreadySettled)
		}
	} else {
		m.matchOrder = append(m.matchOrder, mt.ID)
	}
	m.matches[mt.ID] = mt.Clone()
	return nil
}

func (m *Memory) GetMatch(_ context.Context, id string) (*model.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.matches[id]
	if !ok {
		return nil, notFound("match", id)
	}
	return mt.Clone(), nil
}

func (m *Memory) ListMatches(_ context.Context) ([]*model.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Match, 0, len(m.matchOrder))
	for _, id := range m.matchOrder {
		out = append(out, m.matches[id].Clone())
	}
	return out, nil
}

func (m *Memory) FinishMatch(_ context.Context, id string, score model.Score) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.matches[id]
	if !ok {
		return nil, notFound("match", id)
	}
	if mt.Finished() {
		return nil, fmt.Errorf("match %q: %w", id, model.ErrAlreadySettled)
	}
	next := mt.Clone()
	next.Status = model.MatchFinished
	next.Score = &score
	m.matches[id] = next
	return next.Clone(), nil
}

// ===== leagues

func (m *Memory) CreateLeague(_ context.Context, l *model.League) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inviteCodes[l.InviteCode]; ok {
		return fmt.Errorf("invite code %q in use: %w", l.InviteCode, model.ErrInvalidArgument)
	}
	m.leagues[l.ID] = l.Clone()
	m.inviteCodes[l.InviteCode] = l.ID
	return nil
}

func (m *Memory) GetLeague(_ context.Context, id string) (*model.League, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leagues[id]
	if !ok {
		return nil, notFound("league", id)
	}
	return l.Clone(), nil
}

func (m *Memory) GetLeagueByInviteCode(ctx context.Context, code string) (*model.League, error) {
	m.mu.RLock()
	id, ok := m.inviteCodes[strings.ToUpper(code)]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound("league", code)
	}
	return m.GetLeague(ctx, id)
}

func (m *Memory) AddMember(_ context.Context, leagueID, userID string) (*model.League, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leagues[leagueID]
	if !ok {
		return nil, notFound("league", leagueID)
	}
	if l.HasMember(userID) {
		return nil, model.ErrAlreadyMember
	}
	if len(l.Members) >= l.MaxMembers {
		return nil, model.ErrLeagueFull
	}
	next := l.Clone()
	next.Members = append(next.Members, userID)
	m.leagues[leagueID] = next
	return next.Clone(), nil
}

func (m *Memory) LeaguesForUser(_ context.Context, userID string) ([]*model.League, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.League
	for _, l := range m.leagues {
		if l.HasMember(userID) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ Store = (*Memory)(nil)
