package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
)

func seedUser(t *testing.T, m *Memory, id string, coins int64) {
	t.Helper()
	require.NoError(t, m.CreateUser(context.Background(), &model.User{ID: id, Username: "user-" + id, Coins: coins}))
}

func TestMemoryDebitCredit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedUser(t, m, "u1", 100)

	_, err := m.Debit(ctx, "u1", 101)
	require.True(t, errors.Is(err, model.ErrInsufficientFunds))

	u, err := m.Debit(ctx, "u1", 40)
	require.NoError(t, err)
	require.EqualValues(t, 60, u.Coins)
	require.EqualValues(t, 1, u.Stats.TotalBets)

	u, err = m.Credit(ctx, "u1", 90)
	require.NoError(t, err)
	require.EqualValues(t, 150, u.Coins)
	require.EqualValues(t, 90, u.Stats.BiggestWin)

	u, err = m.Credit(ctx, "u1", 10)
	require.NoError(t, err)
	require.EqualValues(t, 100, u.Stats.TotalWinnings)
	require.EqualValues(t, 90, u.Stats.BiggestWin)

	u, err = m.Refund(ctx, "u1", 40)
	require.NoError(t, err)
	require.EqualValues(t, 200, u.Coins)
	require.EqualValues(t, 0, u.Stats.TotalBets)

	_, err = m.Credit(ctx, "ghost", 1)
	require.True(t, errors.Is(err, model.ErrNotFound))
}

func TestMemoryUsernameUnique(t *testing.T) {
	m := NewMemory()
	seedUser(t, m, "u1", 0)
	err := m.CreateUser(context.Background(), &model.User{ID: "u2", Username: "user-u1"})
	require.True(t, errors.Is(err, model.ErrUsernameTaken))
}

func TestMemoryPendingForMatchDedup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	seedUser(t, m, "u1", 0)

	require.NoError(t, m.CreateBet(ctx, &model.Bet{
		ID: "b1", UserID: "u1", Status: model.BetPending, PlacedAt: now,
		Legs: []model.Leg{
			{MatchID: "m1", Market: "1x2", Selection: "1", Odds: 2},
			{MatchID: "m1", Market: "btts", Selection: "yes", Odds: 1.8},
		},
	}))
	require.NoError(t, m.CreateBet(ctx, &model.Bet{
		ID: "b2", UserID: "u2", Status: model.BetPending, PlacedAt: now,
		Legs: []model.Leg{{MatchID: "m2", Market: "1x2", Selection: "2", Odds: 3}},
	}))

	bets, err := m.PendingForMatch(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, bets, 1)
	require.Equal(t, "b1", bets[0].ID)

	_, _, err = m.SettleBet(ctx, "b1", model.BetLost, now)
	require.NoError(t, err)
	bets, err = m.PendingForMatch(ctx, "m1")
	require.NoError(t, err)
	require.Empty(t, bets)
}

func TestMemorySettleBetIsCASAndCredits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedUser(t, m, "u1", 900)
	require.NoError(t, m.CreateBet(ctx, &model.Bet{ID: "b1", UserID: "u1", Stake: 100, PotentialWin: 210, Status: model.BetPending}))

	b, u, err := m.SettleBet(ctx, "b1", model.BetWon, time.Now())
	require.NoError(t, err)
	require.Equal(t, model.BetWon, b.Status)
	require.NotNil(t, b.SettledAt)
	require.EqualValues(t, 1110, u.Coins)
	require.EqualValues(t, 210, u.Stats.TotalWinnings)
	require.EqualValues(t, 210, u.Stats.BiggestWin)

	_, _, err = m.SettleBet(ctx, "b1", model.BetLost, time.Now())
	require.True(t, errors.Is(err, model.ErrAlreadySettled))

	got, err := m.GetBet(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, model.BetWon, got.Status)
	owner, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.EqualValues(t, 1110, owner.Coins)

	_, _, err = m.SettleBet(ctx, "nope", model.BetLost, time.Now())
	require.True(t, errors.Is(err, model.ErrNotFound))
}

func TestMemorySettleBetLostKeepsBalance(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedUser(t, m, "u1", 900)
	require.NoError(t, m.CreateBet(ctx, &model.Bet{ID: "b1", UserID: "u1", Stake: 100, PotentialWin: 210, Status: model.BetPending}))

	b, u, err := m.SettleBet(ctx, "b1", model.BetLost, time.Now())
	require.NoError(t, err)
	require.Equal(t, model.BetLost, b.Status)
	require.EqualValues(t, 900, u.Coins)
	require.Zero(t, u.Stats.TotalWinnings)
}

func TestMemorySettleBetWithoutOwnerStaysPending(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateBet(ctx, &model.Bet{ID: "b1", UserID: "ghost", PotentialWin: 50, Status: model.BetPending}))

	_, _, err := m.SettleBet(ctx, "b1", model.BetWon, time.Now())
	require.True(t, errors.Is(err, model.ErrNotFound))

	got, err := m.GetBet(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, model.BetPending, got.Status)
	require.Nil(t, got.SettledAt)
}

func TestMemoryCreateBetRejectsFinishedMatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.UpsertMatch(ctx, &model.Match{ID: "m1", Status: model.MatchLive}))
	require.NoError(t, m.UpsertMatch(ctx, &model.Match{ID: "m2", Status: model.MatchLive}))
	_, err := m.FinishMatch(ctx, "m2", model.Score{Home: 1, Away: 0})
	require.NoError(t, err)

	err = m.CreateBet(ctx, &model.Bet{
		ID: "b1", UserID: "u1", Status: model.BetPending,
		Legs: []model.Leg{{MatchID: "m1", Market: "1x2", Selection: "1", Odds: 2}, {MatchID: "m2", Market: "1x2", Selection: "1", Odds: 2}},
	})
	require.True(t, errors.Is(err, model.ErrMatchClosed))

	_, err = m.GetBet(ctx, "b1")
	require.True(t, errors.Is(err, model.ErrNotFound))
	pending, err := m.PendingForMatch(ctx, "m1")
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMemoryBetsByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.CreateBet(ctx, &model.Bet{ID: "old", UserID: "u1", PlacedAt: t0}))
	require.NoError(t, m.CreateBet(ctx, &model.Bet{ID: "new", UserID: "u1", PlacedAt: t0.Add(time.Hour)}))
	require.NoError(t, m.CreateBet(ctx, &model.Bet{ID: "mid", UserID: "u1", PlacedAt: t0.Add(time.Minute)}))

	bets, err := m.BetsByUser(ctx, "u1")
	require.NoError(t, err)
	ids := []string{bets[0].ID, bets[1].ID, bets[2].ID}
	require.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestMemoryFinishMatchOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.UpsertMatch(ctx, &model.Match{ID: "m1", Status: model.MatchUpcoming}))

	mt, err := m.FinishMatch(ctx, "m1", model.Score{Home: 2, Away: 0})
	require.NoError(t, err)
	require.True(t, mt.Finished())

	_, err = m.FinishMatch(ctx, "m1", model.Score{Home: 0, Away: 0})
	require.True(t, errors.Is(err, model.ErrAlreadySettled))

	err = m.UpsertMatch(ctx, &model.Match{ID: "m1", Status: model.MatchLive})
	require.True(t, errors.Is(err, model.ErrAlreadySettled))

	got, err := m.GetMatch(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, model.Score{Home: 2, Away: 0}, *got.Score)
}

func TestMemoryLeagueMembership(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateLeague(ctx, &model.League{
		ID: "l1", InviteCode: "ABCD1234", CreatorID: "u1", Members: []string{"u1"}, MaxMembers: 2,
	}))

	l, err := m.GetLeagueByInviteCode(ctx, "abcd1234")
	require.NoError(t, err)
	require.Equal(t, "l1", l.ID)

	_, err = m.AddMember(ctx, "l1", "u1")
	require.True(t, errors.Is(err, model.ErrAlreadyMember))

	l, err = m.AddMember(ctx, "l1", "u2")
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u2"}, l.Members)

	_, err = m.AddMember(ctx, "l1", "u3")
	require.True(t, errors.Is(err, model.ErrLeagueFull))

	leagues, err := m.LeaguesForUser(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, leagues, 1)
}

func TestOpenMemoryAndUnknownDriver(t *testing.T) {
	s, closeFn, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	require.IsType(t, &Memory{}, s)
	require.NoError(t, closeFn())

	_, _, err = Open(context.Background(), "sqlite", "")
	require.Error(t, err)
}
