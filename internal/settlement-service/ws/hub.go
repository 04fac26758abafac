package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/producer"
	"github.com/radieske/scoreleague/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa as escritas numa conexão (gorilla não aceita writers concorrentes)
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *client) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(b)
}

// Hub gerencia conexões WebSocket e assinaturas por chave
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// chave -> conjunto de clientes
	subs map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.Key == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Key]; !ok {
				h.subs[msg.Key] = make(map[*client]struct{})
			}
			h.subs[msg.Key][c] = struct{}{}
			h.mu.Unlock()
			_ = c.writeJSON(map[string]string{"type": "subscribed", "key": msg.Key})
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.Key]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, msg.Key)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}
}

// drop remove o cliente de todas as assinaturas
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// Broadcast envia o evento uma vez para cada cliente inscrito em qualquer das chaves
func (h *Hub) Broadcast(b events.Broadcast) {
	h.mu.RLock()
	targets := make(map[*client]struct{})
	for _, k := range b.Keys {
		for c := range h.subs[k] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	msg, err := json.Marshal(Update{Event: b.Event, Payload: b.Payload})
	if err != nil {
		h.log.Warn("ws marshal", zap.Error(err))
		return
	}
	for c := range targets {
		if err := c.write(msg); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
		}
	}
}

// Subscribers retorna quantos clientes estão inscritos na chave
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Emit faz do Hub um events.Sink, usado quando não há Redis entre os processos
func (h *Hub) Emit(_ context.Context, name string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.Broadcast(events.Broadcast{Event: name, Keys: producer.BroadcastKeys(payload), Payload: raw})
	return nil
}
