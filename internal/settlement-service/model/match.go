package model

import "time"

type MatchStatus string

const (
	MatchUpcoming MatchStatus = "upcoming"
	MatchLive     MatchStatus = "live"
	MatchFinished MatchStatus = "finished"
)

// Score é o placar final, gravado uma única vez na liquidação
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Match é referenciada pelas apostas apenas por id.
// Invariante: Status == MatchFinished <=> Score != nil
type Match struct {
	ID       string      `json:"id"`
	HomeTeam string      `json:"homeTeam"`
	AwayTeam string      `json:"awayTeam"`
	League   string      `json:"league"`
	Kickoff  time.Time   `json:"kickoff"`
	Status   MatchStatus `json:"status"`
	Score    *Score      `json:"score"`
}

func (m *Match) Finished() bool { return m.Status == MatchFinished && m.Score != nil }

func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	if m.Score != nil {
		s := *m.Score
		c.Score = &s
	}
	return &c
}
