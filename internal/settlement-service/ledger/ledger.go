// Package ledger é o dono dos saldos: débito de stake, crédito de prêmio e estorno.
// Toda mutação de um usuário passa por um lock por usuário antes de chegar ao repositório.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
	"github.com/radieske/scoreleague/internal/shared/keylock"
)

// MinUsernameLen é o tamanho mínimo do username depois do trim
const MinUsernameLen = 2

type Ledger struct {
	log   *zap.Logger
	users repo.Users
	locks *keylock.Locker
	now   func() time.Time
}

func New(log *zap.Logger, users repo.Users) *Ledger {
	return &Ledger{
		log:   log,
		users: users,
		locks: keylock.New(),
		now:   time.Now,
	}
}

func checkAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount %d must be positive: %w", amount, model.ErrInvalidArgument)
	}
	return nil
}

// Debit retira amount do saldo e conta mais uma aposta.
// Saldo insuficiente retorna model.ErrInsufficientFunds sem alterar nada.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64) (*model.User, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	unlock := l.locks.Lock(userID)
	defer unlock()

	u, err := l.users.Debit(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("debit %s: %w", userID, err)
	}
	return u, nil
}

// Credit paga um prêmio: saldo, totalWinnings e biggestWin
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64) (*model.User, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	unlock := l.locks.Lock(userID)
	defer unlock()

	u, err := l.users.Credit(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("credit %s: %w", userID, err)
	}
	return u, nil
}

// Refund compensa um Debit de uma aposta que não chegou a ser gravada
func (l *Ledger) Refund(ctx context.Context, userID string, amount int64) (*model.User, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	unlock := l.locks.Lock(userID)
	defer unlock()

	u, err := l.users.Refund(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("refund %s: %w", userID, err)
	}
	return u, nil
}

func (l *Ledger) Get(ctx context.Context, userID string) (*model.User, error) {
	return l.users.GetUser(ctx, userID)
}

// Login busca o usuário pelo username ou cria um novo com model.InitialCoins.
// created indica se o usuário acabou de ser criado.
func (l *Ledger) Login(ctx context.Context, username string) (u *model.User, created bool, err error) {
	name := strings.TrimSpace(username)
	if len([]rune(name)) < MinUsernameLen {
		return nil, false, fmt.Errorf("username must have at least %d characters: %w", MinUsernameLen, model.ErrInvalidArgument)
	}

	unlock := l.locks.Lock("username:" + name)
	defer unlock()

	u, err = l.users.GetUserByUsername(ctx, name)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, false, err
	}

	u = &model.User{
		ID:       uuid.NewString(),
		Username: name,
		Coins:    model.InitialCoins,
		JoinedAt: l.now().UTC(),
	}
	if err := l.users.CreateUser(ctx, u); err != nil {
		// outro processo criou o mesmo username entre o get e o create
		if errors.Is(err, model.ErrUsernameTaken) {
			u, err = l.users.GetUserByUsername(ctx, name)
			return u, false, err
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	l.log.Info("user created", zap.String("userId", u.ID), zap.String("username", u.Username))
	return u, true, nil
}
