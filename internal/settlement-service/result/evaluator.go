package result

import (
	"fmt"

	"github.com/radieske/scoreleague/internal/settlement-service/market"
	"github.com/radieske/scoreleague/internal/settlement-service/model"
)

// GoalLine é a única linha de total de gols suportada (meio gol, sem push)
const GoalLine = 2.5

// ResultSet contém a seleção vencedora de cada mercado suportado
type ResultSet struct {
	MatchResult  market.Selection   `json:"match_result"`
	DoubleChance []market.Selection `json:"double_chance"`
	TotalGoals   market.Selection   `json:"total_goals"`
	BTTS         market.Selection   `json:"btts"`
}

// Evaluate calcula o ResultSet de um placar final.
// Valores negativos viram 0; a validação real é responsabilidade de quem chama.
func Evaluate(homeGoals, awayGoals int) ResultSet {
	h, a := max(homeGoals, 0), max(awayGoals, 0)

	rs := ResultSet{
		MatchResult: market.Draw,
		TotalGoals:  market.Under,
		BTTS:        market.No,
	}
	switch {
	case h > a:
		rs.MatchResult = market.Home
	case h < a:
		rs.MatchResult = market.Away
	}

	rs.DoubleChance = make([]market.Selection, 0, 2)
	if h >= a {
		rs.DoubleChance = append(rs.DoubleChance, market.HomeOrDraw)
	}
	if h != a {
		rs.DoubleChance = append(rs.DoubleChance, market.HomeOrAway)
	}
	if a >= h {
		rs.DoubleChance = append(rs.DoubleChance, market.DrawOrAway)
	}

	if float64(h+a) > GoalLine {
		rs.TotalGoals = market.Over
	}
	if h > 0 && a > 0 {
		rs.BTTS = market.Yes
	}
	return rs
}

// FromScore é um atalho para placares já persistidos
func FromScore(s model.Score) ResultSet { return Evaluate(s.Home, s.Away) }

// Wins informa se a seleção canônica venceu.
// Mercados não suportados retornam model.ErrUnknownMarket.
func (r ResultSet) Wins(p market.Pick) (bool, error) {
	switch p.Market {
	case market.MatchResult:
		return p.Selection == r.MatchResult, nil
	case market.DoubleChance:
		for _, s := range r.DoubleChance {
			if s == p.Selection {
				return true, nil
			}
		}
		return false, nil
	case market.TotalGoals:
		return p.Selection == r.TotalGoals, nil
	case market.BTTS:
		return p.Selection == r.BTTS, nil
	}
	return false, fmt.Errorf("market %q: %w", p.Market, model.ErrUnknownMarket)
}
