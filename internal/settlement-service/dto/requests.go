package dto

import "time"

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=32"`
}

type LegRequest struct {
	MatchID   string  `json:"matchId" validate:"required"`
	Market    string  `json:"market" validate:"required"`    // ex: "1x2", "btts", "over_under"
	Selection string  `json:"selection" validate:"required"` // ex: "1", "yes", "over_2_5"
	Odds      float64 `json:"odds" validate:"gte=1"`
}

type PlaceBetRequest struct {
	UserID    string       `json:"userId" validate:"required"`
	Legs      []LegRequest `json:"legs" validate:"required,min=1,max=20,dive"`
	Stake     int64        `json:"stake" validate:"gt=0"`
	LeagueIDs []string     `json:"leagueIds" validate:"omitempty,dive,required"`
}

// SettleMatchRequest usa ponteiros para distinguir 0 de ausente
type SettleMatchRequest struct {
	HomeGoals *int `json:"homeGoals" validate:"required,gte=0"`
	AwayGoals *int `json:"awayGoals" validate:"required,gte=0"`
}

type SettleBetRequest struct {
	Result string `json:"result" validate:"required,oneof=won lost"`
}

type UpsertMatchRequest struct {
	ID       string    `json:"id" validate:"required"`
	HomeTeam string    `json:"homeTeam" validate:"required"`
	AwayTeam string    `json:"awayTeam" validate:"required"`
	League   string    `json:"league"`
	Kickoff  time.Time `json:"kickoff"`
	Status   string    `json:"status" validate:"omitempty,oneof=upcoming live"` // finished só via settle
}

type CreateLeagueRequest struct {
	CreatorID   string `json:"creatorId" validate:"required"`
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=280"`
}

type JoinLeagueRequest struct {
	InviteCode string `json:"inviteCode" validate:"required,len=8,alphanum"`
	UserID     string `json:"userId" validate:"required"`
}
