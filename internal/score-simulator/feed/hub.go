// Package feed simula um fornecedor de placares: gera resultados finais e transmite via WebSocket.
package feed

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/pkg/contracts/events"
)

// Representa uma conexão de cliente WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// Hub gerencia os clientes conectados e faz broadcast para todos eles
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*clientConn
	log      *zap.Logger
	upgrader websocket.Upgrader
	seq      int64

	OnConnect    func(delta int) // métrica de conexões (+1/-1)
	OnMessageOut func()
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*clientConn),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	if h.OnConnect != nil {
		h.OnConnect(1)
	}
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		if h.OnConnect != nil {
			h.OnConnect(-1)
		}
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Clients retorna quantos clientes estão conectados
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast envia a mensagem para todos os clientes conectados.
// Usa o lock exclusivo porque as escritas do gorilla não podem ser concorrentes.
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("marshal broadcast", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
			continue
		}
		if h.OnMessageOut != nil {
			h.OnMessageOut()
		}
	}
}

// HandleWS registra o cliente e descarta o que ele enviar até desconectar
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	h.seq++
	id := strconv.FormatInt(h.seq, 10)
	h.mu.Unlock()

	c := &clientConn{id: id, conn: conn}
	h.add(c)
	defer func() {
		h.remove(id)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Generator sorteia placares finais para um catálogo de jogos, cada jogo uma única vez
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	pending []string
	source  string
}

func NewGenerator(matchIDs []string, source string, seed int64) *Generator {
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		pending: append([]string(nil), matchIDs...),
		source:  source,
	}
}

// Next devolve o próximo resultado; ok=false quando o catálogo acabou
func (g *Generator) Next() (res events.MatchResult, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pending) == 0 {
		return events.MatchResult{}, false
	}
	i := g.rng.Intn(len(g.pending))
	id := g.pending[i]
	g.pending = append(g.pending[:i], g.pending[i+1:]...)
	return events.MatchResult{
		MatchID:   id,
		HomeGoals: goals(g.rng),
		AwayGoals: goals(g.rng),
		Source:    g.source,
		Ts:        time.Now().UTC(),
	}, true
}

// goals segue uma distribuição aproximada de gols por time (0 a 5)
func goals(rng *rand.Rand) int {
	weights := []int{30, 35, 20, 10, 4, 1}
	n := rng.Intn(100)
	for g, w := range weights {
		if n < w {
			return g
		}
		n -= w
	}
	return 0
}
