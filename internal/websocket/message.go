package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Actions carried in Message.Action.
const (
	ActionPostCreated = "post.created"
	ActionPing        = "ping"
	ActionPong        = "pong"
	ActionError       = "error"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

// NewMessage encodes a message for Client.Send.
func NewMessage(action string, payload any) []byte {
	b, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket message")
		return nil
	}
	return b
}

// NewErrorMessage encodes an error notice for the client.
func NewErrorMessage(text string) []byte {
	return NewMessage(ActionError, map[string]string{"error": text})
}
