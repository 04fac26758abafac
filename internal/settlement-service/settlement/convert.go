package settlement

import (
	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/result"
	"github.com/radieske/scoreleague/pkg/contracts/events"
)

func toEventBet(b *model.Bet) events.Bet {
	legs := make([]events.Leg, 0, len(b.Legs))
	for _, l := range b.Legs {
		legs = append(legs, events.Leg{
			MatchID:   l.MatchID,
			Market:    l.Market,
			Selection: l.Selection,
			Odds:      l.Odds,
		})
	}
	return events.Bet{
		ID:           b.ID,
		UserID:       b.UserID,
		Legs:         legs,
		Stake:        b.Stake,
		CombinedOdds: b.CombinedOdds,
		PotentialWin: b.PotentialWin,
		Status:       string(b.Status),
		LeagueIDs:    b.LeagueIDs,
		PlacedAt:     b.PlacedAt,
		SettledAt:    b.SettledAt,
	}
}

// toEventUser aceita u nil (usuário não carregado) e mantém só o id
func toEventUser(u *model.User, id string) events.User {
	if u == nil {
		return events.User{ID: id}
	}
	return events.User{
		ID:            u.ID,
		Username:      u.Username,
		Coins:         u.Coins,
		TotalBets:     u.Stats.TotalBets,
		TotalWinnings: u.Stats.TotalWinnings,
		BiggestWin:    u.Stats.BiggestWin,
	}
}

func toEventResultSet(rs result.ResultSet) events.ResultSet {
	dc := make([]string, 0, len(rs.DoubleChance))
	for _, s := range rs.DoubleChance {
		dc = append(dc, string(s))
	}
	return events.ResultSet{
		MatchResult:  string(rs.MatchResult),
		DoubleChance: dc,
		TotalGoals:   string(rs.TotalGoals),
		BTTS:         string(rs.BTTS),
	}
}
