package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/pkg/contracts/events"
)

type Publisher interface {
	Publish(ctx context.Context, r events.MatchResult) error
}

// WSClient consome placares finais de um fornecedor via WebSocket
// e publica cada resultado no tópico Kafka de placares.
type WSClient struct {
	URL       string      // URL do endpoint WebSocket do fornecedor
	Log       *zap.Logger // Logger estruturado
	Publisher Publisher
	Reconnect time.Duration // espera entre reconexões (padrão 3s)

	OnReceived  func()
	OnPublished func()
	OnError     func(stage string)
}

// Start inicia o loop de conexão e escuta do WebSocket.
// Em caso de desconexão, tenta reconectar automaticamente.
func (c *WSClient) Start(ctx context.Context) {
	wait := c.Reconnect
	if wait <= 0 {
		wait = 3 * time.Second
	}
	for {
		if err := c.connectAndListen(ctx); err != nil {
			c.Log.Warn("connection closed", zap.Error(err))
			c.fail("connect")
		}
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping WS client")
			return
		case <-time.After(wait):
		}
	}
}

// connectAndListen estabelece a conexão e publica cada mensagem recebida
func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to score provider WS", zap.String("url", c.URL))

	// fecha a conexão quando o contexto termina para destravar o ReadMessage
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if c.OnReceived != nil {
			c.OnReceived()
		}

		var res events.MatchResult
		if err := json.Unmarshal(message, &res); err != nil || res.MatchID == "" {
			c.Log.Warn("invalid message", zap.ByteString("raw", message), zap.Error(err))
			c.fail("decode")
			continue
		}
		if res.Ts.IsZero() {
			res.Ts = time.Now().UTC()
		}

		if err := c.Publisher.Publish(ctx, res); err != nil {
			c.Log.Error("failed to publish to Kafka", zap.Error(err))
			c.fail("publish")
			continue
		}
		if c.OnPublished != nil {
			c.OnPublished()
		}
	}
}

func (c *WSClient) fail(stage string) {
	if c.OnError != nil {
		c.OnError(stage)
	}
}
