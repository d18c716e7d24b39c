package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// WebSocketHandler feeds committed transition events to connected admin
// dashboards.
type WebSocketHandler struct {
	logger           *slog.Logger
	websocketManager *Manager
}

func NewWebSocketHandler(logger *slog.Logger, websocketManager *Manager) *WebSocketHandler {
	return &WebSocketHandler{
		logger:           logger,
		websocketManager: websocketManager,
	}
}

// RegisterRoutes expects a router already guarded by the auth middleware:
// the feed carries customer emails and balances.
func (h *WebSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/events", h.HandleConnection)
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.websocketManager.Upgrade(w, r)
	if err != nil {
		h.logger.Error("Error upgrading connection", "error", err)
		return
	}

	h.logger.Info("New WebSocket connection", "remote", r.RemoteAddr)
	h.websocketManager.Add(conn)

	// Keep connection open and handle disconnection
	for {
		if _, _, readErr := conn.ReadMessage(); readErr != nil {
			h.logger.Info("WebSocket connection closed", "remote", r.RemoteAddr, "error", readErr)
			h.websocketManager.Remove(conn)
			break
		}
	}
}
