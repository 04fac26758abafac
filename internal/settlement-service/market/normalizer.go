package market

import "strings"

var marketAliases = map[string]Market{
	"match_result": MatchResult,
	"1x2":          MatchResult,
	"match-winner": MatchResult,
	"matchwinner":  MatchResult,

	"double_chance": DoubleChance,
	"doublechance":  DoubleChance,
	"dc":            DoubleChance,

	"total_goals":    TotalGoals,
	"over_under":     TotalGoals,
	"overunder":      TotalGoals,
	"over_under_2_5": TotalGoals,
	"over2_5":        TotalGoals,
	"under2_5":       TotalGoals,
	"ou":             TotalGoals,
	"ou2_5":          TotalGoals,

	"btts":                BTTS,
	"both_teams":          BTTS,
	"both_teams_to_score": BTTS,
	"bothteamstoscore":    BTTS,
	"bothteams":           BTTS,
}

var selectionAliases = map[Market]map[string]Selection{
	MatchResult: {
		"1": Home, "home": Home, "home_win": Home,
		"x": Draw, "draw": Draw,
		"2": Away, "away": Away, "away_win": Away,
	},
	DoubleChance: {
		"1x": HomeOrDraw, "1-x": HomeOrDraw, "1orx": HomeOrDraw,
		"12": HomeOrAway, "1-2": HomeOrAway, "1or2": HomeOrAway,
		"x2": DrawOrAway, "x-2": DrawOrAway, "xor2": DrawOrAway,
	},
	BTTS: {
		"yes": Yes, "y": Yes,
		"no": No, "n": No,
	},
}

func clean(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizeMarket mapeia códigos legados para o mercado canônico.
// Códigos desconhecidos voltam em minúsculas, sem erro.
func NormalizeMarket(raw string) Market {
	m := clean(raw)
	if c, ok := marketAliases[m]; ok {
		return c
	}
	return Market(m)
}

// NormalizeSelection normaliza a seleção no escopo do mercado.
// Em total_goals o sufixo da linha é descartado ("over_2_5" -> "over").
func NormalizeSelection(raw, rawMarket string) Selection {
	sel := clean(raw)
	m := NormalizeMarket(rawMarket)

	if m == TotalGoals {
		switch {
		case strings.HasPrefix(sel, string(Over)):
			return Over
		case strings.HasPrefix(sel, string(Under)):
			return Under
		}
		return Selection(sel)
	}
	if c, ok := selectionAliases[m][sel]; ok {
		return c
	}
	return Selection(sel)
}
