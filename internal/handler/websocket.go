package handler

import (
	"net/http"

	"campustrade-api/internal/notify"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler upgrades authenticated requests into live event sessions.
type WebSocketHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler creates a websocket handler. allowedOrigins follows the
// CORS setting; "*" accepts any origin.
func NewWebSocketHandler(hub *notify.Hub, allowedOrigins []string, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.Named("ws"),
	}
}

// Serve handles GET /api/v1/ws
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := actor(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	h.hub.Attach(conn, userID)
	h.log.Debug("websocket connected", zap.String("user_id", userID))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
