package model

import "time"

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
)

// Terminal indica que a aposta já foi liquidada e não muda mais
func (s BetStatus) Terminal() bool { return s == BetWon || s == BetLost }

// Leg é uma seleção dentro do bilhete. Market e Selection ficam como o cliente enviou;
// a normalização acontece na liquidação.
type Leg struct {
	MatchID   string  `json:"matchId"`
	Market    string  `json:"market"`
	Selection string  `json:"selection"`
	Odds      float64 `json:"odds"`
}

// Bet modela aposta simples e múltipla do mesmo jeito: N pernas, um stake, odd combinada
type Bet struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Legs         []Leg      `json:"legs"`
	Stake        int64      `json:"stake"`
	CombinedOdds float64    `json:"combinedOdds"`
	PotentialWin int64      `json:"potentialWin"`
	Status       BetStatus  `json:"status"`
	LeagueIDs    []string   `json:"leagueIds"`
	PlacedAt     time.Time  `json:"placedAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

// MatchIDs retorna os jogos referenciados, sem repetição, na ordem das pernas
func (b *Bet) MatchIDs() []string {
	seen := make(map[string]struct{}, len(b.Legs))
	out := make([]string, 0, len(b.Legs))
	for _, l := range b.Legs {
		if _, ok := seen[l.MatchID]; ok {
			continue
		}
		seen[l.MatchID] = struct{}{}
		out = append(out, l.MatchID)
	}
	return out
}

func (b *Bet) HasMatch(matchID string) bool {
	for _, l := range b.Legs {
		if l.MatchID == matchID {
			return true
		}
	}
	return false
}

func (b *Bet) InLeague(leagueID string) bool {
	for _, id := range b.LeagueIDs {
		if id == leagueID {
			return true
		}
	}
	return false
}

func (b *Bet) Clone() *Bet {
	if b == nil {
		return nil
	}
	c := *b
	c.Legs = append([]Leg(nil), b.Legs...)
	c.LeagueIDs = append([]string(nil), b.LeagueIDs...)
	if b.SettledAt != nil {
		t := *b.SettledAt
		c.SettledAt = &t
	}
	return &c
}
