package events

import (
	"context"
	"encoding/json"
	"time"
)

// Nomes dos eventos emitidos pelo orquestrador
const (
	BetPlacedEvent     = "betPlaced"
	BetSettledEvent    = "betSettled"
	MatchSettledEvent  = "matchSettled"
	LeagueCreatedEvent = "leagueCreated"
	LeagueUpdatedEvent = "leagueUpdated"
)

// Sink recebe os eventos de domínio (Kafka, Redis, log...)
type Sink interface {
	Emit(ctx context.Context, name string, payload any) error
}

type Leg struct {
	MatchID   string  `json:"matchId"`
	Market    string  `json:"market"`
	Selection string  `json:"selection"`
	Odds      float64 `json:"odds"`
}

type Bet struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Legs         []Leg      `json:"legs"`
	Stake        int64      `json:"stake"`
	CombinedOdds float64    `json:"combinedOdds"`
	PotentialWin int64      `json:"potentialWin"`
	Status       string     `json:"status"`
	LeagueIDs    []string   `json:"leagueIds,omitempty"`
	PlacedAt     time.Time  `json:"placedAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Coins         int64  `json:"coins"`
	TotalBets     int64  `json:"totalBets"`
	TotalWinnings int64  `json:"totalWinnings"`
	BiggestWin    int64  `json:"biggestWin"`
}

// BetPlaced é publicado no tópico "bet_placed"
type BetPlaced struct {
	Bet  Bet       `json:"bet"`
	User User      `json:"user"`
	Ts   time.Time `json:"ts"`
}

// BetSettled é publicado no tópico "bet_settled" (uma vez por aposta)
type BetSettled struct {
	Bet  Bet       `json:"bet"`
	User User      `json:"user"`
	Ts   time.Time `json:"ts"`
}

type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type ResultSet struct {
	MatchResult  string   `json:"match_result"`
	DoubleChance []string `json:"double_chance"`
	TotalGoals   string   `json:"total_goals"`
	BTTS         string   `json:"btts"`
}

// MatchSettled é o resumo por jogo no tópico "match_settled"
type MatchSettled struct {
	MatchID   string    `json:"matchId"`
	Score     Score     `json:"score"`
	ResultSet ResultSet `json:"resultSet"`
	Settled   int       `json:"settled"`
	Won       int       `json:"won"`
	Ts        time.Time `json:"ts"`
}

type League struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creatorId"`
	InviteCode  string    `json:"inviteCode"`
	Members     []string  `json:"members"`
	MaxMembers  int       `json:"maxMembers"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LeagueCreated e LeagueUpdated vão para o tópico "league_events"
type LeagueCreated struct {
	League League    `json:"league"`
	Ts     time.Time `json:"ts"`
}

type LeagueUpdated struct {
	League League    `json:"league"`
	UserID string    `json:"userId"` // quem entrou
	Ts     time.Time `json:"ts"`
}

// MatchResult é a mensagem consumida do tópico "match_results"
type MatchResult struct {
	MatchID   string    `json:"matchId"`
	HomeGoals int       `json:"homeGoals"`
	AwayGoals int       `json:"awayGoals"`
	Source    string    `json:"source,omitempty"`
	Ts        time.Time `json:"ts"`
}

// Broadcast é o envelope publicado no Redis Pub/Sub para o hub WebSocket
// Keys: "user:<id>", "match:<id>", "league:<id>", "all"
type Broadcast struct {
	Event   string          `json:"event"`
	Keys    []string        `json:"keys"`
	Payload json.RawMessage `json:"payload"`
}
