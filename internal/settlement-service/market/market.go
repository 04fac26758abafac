package market

import (
	"fmt"

	"github.com/radieske/scoreleague/internal/settlement-service/model"
)

// Market é o vocabulário canônico de mercados.
// Qualquer valor fora das constantes abaixo é um mercado não suportado.
type Market string

const (
	MatchResult  Market = "match_result"
	DoubleChance Market = "double_chance"
	TotalGoals   Market = "total_goals" // linha fixa de 2.5 gols
	BTTS         Market = "btts"
)

type Selection string

const (
	Home Selection = "home"
	Draw Selection = "draw"
	Away Selection = "away"

	HomeOrDraw Selection = "1x"
	HomeOrAway Selection = "12"
	DrawOrAway Selection = "x2"

	Over  Selection = "over"
	Under Selection = "under"

	Yes Selection = "yes"
	No  Selection = "no"
)

// selections lista as seleções válidas de cada mercado suportado
var selections = map[Market][]Selection{
	MatchResult:  {Home, Draw, Away},
	DoubleChance: {HomeOrDraw, HomeOrAway, DrawOrAway},
	TotalGoals:   {Over, Under},
	BTTS:         {Yes, No},
}

// Supported indica se o mercado tem liquidação automática
func (m Market) Supported() bool {
	_, ok := selections[m]
	return ok
}

// Selections retorna as seleções do mercado (nil se não suportado)
func (m Market) Selections() []Selection {
	return append([]Selection(nil), selections[m]...)
}

func (m Market) Accepts(s Selection) bool {
	for _, v := range selections[m] {
		if v == s {
			return true
		}
	}
	return false
}

// Pick é uma perna já normalizada
type Pick struct {
	Market    Market    `json:"market"`
	Selection Selection `json:"selection"`
}

func (p Pick) String() string { return string(p.Market) + ":" + string(p.Selection) }

// Parse normaliza mercado e seleção crus.
// Retorna model.ErrUnknownMarket quando o par não pode ser liquidado automaticamente.
func Parse(rawMarket, rawSelection string) (Pick, error) {
	p := Pick{
		Market:    NormalizeMarket(rawMarket),
		Selection: NormalizeSelection(rawSelection, rawMarket),
	}
	if !p.Market.Supported() {
		return p, fmt.Errorf("market %q: %w", rawMarket, model.ErrUnknownMarket)
	}
	if !p.Market.Accepts(p.Selection) {
		return p, fmt.Errorf("selection %q for %s: %w", rawSelection, p.Market, model.ErrUnknownMarket)
	}
	return p, nil
}
