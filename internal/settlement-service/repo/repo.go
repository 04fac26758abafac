package repo

import (
	"context"
	"time"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
)

// Users persiste usuários e aplica as mutações de saldo de forma atômica
type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	// Debit falha com model.ErrInsufficientFunds se amount > saldo
	Debit(ctx context.Context, userID string, amount int64) (*model.User, error)
	Credit(ctx context.Context, userID string, amount int64) (*model.User, error)
	// Refund desfaz um Debit (saldo e totalBets)
	Refund(ctx context.Context, userID string, amount int64) (*model.User, error)
}

// Bets persiste apostas indexadas por usuário e por jogo
type Bets interface {
	// CreateBet rejeita com model.ErrMatchClosed aposta em jogo já finalizado
	CreateBet(ctx context.Context, b *model.Bet) error
	GetBet(ctx context.Context, id string) (*model.Bet, error)
	PendingForMatch(ctx context.Context, matchID string) ([]*model.Bet, error)
	BetsByUser(ctx context.Context, userID string) ([]*model.Bet, error)

	// SettleBet é um compare-and-set: só sai de pending, senão model.ErrAlreadySettled.
	// Aposta ganha credita PotentialWin ao dono na mesma operação; se o crédito falhar
	// a aposta continua pending. Devolve o usuário depois da mudança.
	SettleBet(ctx context.Context, id string, to model.BetStatus, at time.Time) (*model.Bet, *model.User, error)
}

type Matches interface {
	UpsertMatch(ctx context.Context, m *model.Match) error
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	ListMatches(ctx context.Context) ([]*model.Match, error)

	// FinishMatch grava o placar uma única vez; jogo já finalizado retorna model.ErrAlreadySettled
	FinishMatch(ctx context.Context, id string, score model.Score) (*model.Match, error)
}

type Leagues interface {
	CreateLeague(ctx context.Context, l *model.League) error
	GetLeague(ctx context.Context, id string) (*model.League, error)
	GetLeagueByInviteCode(ctx context.Context, code string) (*model.League, error)
	// AddMember respeita MaxMembers e rejeita membros repetidos
	AddMember(ctx context.Context, leagueID, userID string) (*model.League, error)
	LeaguesForUser(ctx context.Context, userID string) ([]*model.League, error)
}

// Store agrega todos os repositórios usados pelo serviço
type Store interface {
	Users
	Bets
	Matches
	Leagues
}
