package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMap(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHubDeliversByKey(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	alice := dial(t, srv)
	require.NoError(t, alice.WriteJSON(ClientMsg{Type: "subscribe", Key: "user:u1"}))
	require.NoError(t, alice.WriteJSON(ClientMsg{Type: "subscribe", Key: "all"}))
	require.Equal(t, "subscribed", readMap(t, alice)["type"])
	require.Equal(t, "subscribed", readMap(t, alice)["type"])

	bob := dial(t, srv)
	require.NoError(t, bob.WriteJSON(ClientMsg{Type: "ping"}))
	require.Equal(t, "pong", readMap(t, bob)["type"])
	require.NoError(t, bob.WriteJSON(ClientMsg{Type: "subscribe", Key: "user:u2"}))
	require.Equal(t, "subscribed", readMap(t, bob)["type"])

	payload, _ := json.Marshal(map[string]string{"betId": "b1"})
	hub.Broadcast(events.Broadcast{Event: events.BetSettledEvent, Keys: []string{"all", "user:u1"}, Payload: payload})

	// alice assina as duas chaves mas recebe uma vez só
	got := readMap(t, alice)
	require.Equal(t, events.BetSettledEvent, got["event"])
	require.Equal(t, "b1", got["payload"].(map[string]any)["betId"])

	require.NoError(t, alice.WriteJSON(ClientMsg{Type: "ping"}))
	require.Equal(t, "pong", readMap(t, alice)["type"])

	// bob não recebeu nada antes do próprio pong
	require.NoError(t, bob.WriteJSON(ClientMsg{Type: "ping"}))
	require.Equal(t, "pong", readMap(t, bob)["type"])
}

func TestHubDropsClosedConnections(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Key: "match:m1"}))
	readMap(t, conn)
	require.Equal(t, 1, hub.Subscribers("match:m1"))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("match:m1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubAsSink(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Key: "match:m1"}))
	readMap(t, conn)

	require.NoError(t, hub.Emit(context.Background(), events.MatchSettledEvent, events.MatchSettled{MatchID: "m1", Settled: 3}))
	got := readMap(t, conn)
	require.Equal(t, events.MatchSettledEvent, got["event"])
	require.EqualValues(t, 3, got["payload"].(map[string]any)["settled"])
}
