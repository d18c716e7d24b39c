package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T) (*httptest.Server, *Manager) {
	t.Helper()

	manager := NewWebSocketManager(slog.Default())
	wsHandler := NewWebSocketHandler(slog.Default(), manager)
	auth := NewAuthMiddleware(slog.Default(), staticVerifier{token: "secret-token"})

	router := mux.NewRouter()
	wsRouter := router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(auth.Handler)
	wsHandler.RegisterRoutes(wsRouter)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, manager
}

func feedURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
}

func TestEventFeedRequiresToken(t *testing.T) {
	server, _ := newFeedServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(feedURL(server), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEventFeedRejectsBadToken(t *testing.T) {
	server, _ := newFeedServer(t)

	header := http.Header{"Authorization": []string{"Bearer wrong-token"}}
	conn, resp, err := websocket.DefaultDialer.Dial(feedURL(server), header)
	require.Error(t, err)
	require.Nil(t, conn)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEventFeedDeliversBroadcasts(t *testing.T) {
	server, manager := newFeedServer(t)

	header := http.Header{"Authorization": []string{"Bearer secret-token"}}
	conn, _, err := websocket.DefaultDialer.Dial(feedURL(server), header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return manager.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	manager.Broadcast([]byte(`{"entity_type":"transfer","entity_id":5}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(payload), `"entity_id":5`)
}
