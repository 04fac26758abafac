package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Key: "user:<id>", "match:<id>" ou "all"; obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// Update é o que o cliente recebe
type Update struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}
