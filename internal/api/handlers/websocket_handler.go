package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/isdelr/ender-feed-be/internal/services"
	ws "github.com/isdelr/ender-feed-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades HTTP connections into live feed subscriptions.
type WebSocketHandler struct {
	hub   *ws.Hub
	users services.UserServiceProvider
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *ws.Hub, users services.UserServiceProvider) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, users: users}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (consider tightening this in production).
		return true
	},
}

// Serve subscribes the connection to {userId}'s live feed.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if _, err := h.users.GetUserByID(r.Context(), userID); err != nil {
		writeError(w, err, "Failed to open live feed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleIncomingWSMessage)
		h.hub.Unregister(client)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Warn().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		return
	}

	var reply []byte
	switch msg.Action {
	case ws.ActionPing:
		reply = ws.NewMessage(ws.ActionPong, nil)
	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		reply = ws.NewErrorMessage("Unknown action: " + msg.Action)
	}
	h.hub.Reply(client, reply)
}
