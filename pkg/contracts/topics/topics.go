package topics

const (
	// Apostas
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"

	// Jogos
	MatchSettled = "match_settled"
	MatchResults = "match_results" // placar final vindo do feed

	// Ligas (criação e entrada de membros)
	LeagueEvents = "league_events"

	// DLQs
	MatchResultsDLQ = "match_results_dlq"

	// Redis Pub/Sub consumido pelo hub WebSocket
	SettlementBroadcast = "settlement_broadcast"
)
