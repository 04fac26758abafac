package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
)

func newLedger(t *testing.T) (*Ledger, *model.User) {
	t.Helper()
	l := New(zap.NewNop(), repo.NewMemory())
	u, created, err := l.Login(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, created)
	return l, u
}

func TestLoginGetOrCreate(t *testing.T) {
	ctx := context.Background()
	l, u := newLedger(t)
	require.Equal(t, model.InitialCoins, u.Coins)
	require.NotEmpty(t, u.ID)

	again, created, err := l.Login(ctx, "  alice ")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, u.ID, again.ID)

	_, _, err = l.Login(ctx, " a ")
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestDebitCreditRefund(t *testing.T) {
	ctx := context.Background()
	l, u := newLedger(t)

	got, err := l.Debit(ctx, u.ID, 100)
	require.NoError(t, err)
	require.Equal(t, int64(900), got.Coins)
	require.Equal(t, int64(1), got.Stats.TotalBets)

	got, err = l.Credit(ctx, u.ID, 210)
	require.NoError(t, err)
	require.Equal(t, int64(1110), got.Coins)
	require.Equal(t, int64(210), got.Stats.TotalWinnings)
	require.Equal(t, int64(210), got.Stats.BiggestWin)

	got, err = l.Credit(ctx, u.ID, 50)
	require.NoError(t, err)
	require.Equal(t, int64(210), got.Stats.BiggestWin)

	got, err = l.Debit(ctx, u.ID, 60)
	require.NoError(t, err)
	got, err = l.Refund(ctx, u.ID, 60)
	require.NoError(t, err)
	require.Equal(t, int64(1160), got.Coins)
	require.Equal(t, int64(1), got.Stats.TotalBets)
}

func TestDebitRejects(t *testing.T) {
	ctx := context.Background()
	l, u := newLedger(t)

	_, err := l.Debit(ctx, u.ID, 1001)
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	_, err = l.Debit(ctx, u.ID, 0)
	require.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = l.Debit(ctx, "ghost", 10)
	require.ErrorIs(t, err, model.ErrNotFound)

	got, err := l.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, model.InitialCoins, got.Coins)
	require.Zero(t, got.Stats.TotalBets)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l, u := newLedger(t)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Debit(ctx, u.ID, 100); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := l.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 10, ok)
	require.Zero(t, got.Coins)
}
