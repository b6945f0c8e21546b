package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type directMessage struct {
	userID  string
	message []byte
}

type clientMessage struct {
	client  *Client
	message []byte
}

// Hub maintains the set of active clients and routes messages to the
// clients subscribed to a user's feed.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// A map of user IDs to the clients watching that user's feed.
	subscriptions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	direct     chan directMessage
	reply      chan clientMessage

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		direct:        make(chan directMessage),
		reply:         make(chan clientMessage),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.addSubscription(client, client.UserID)
			log.Info().Str("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Str("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case msg := <-h.direct:
			for client := range h.subscriptions[msg.userID] {
				select {
				case client.Send <- msg.message:
				default:
					// Slow consumer; WritePump will close the connection.
					h.drop(client)
				}
			}
		case msg := <-h.reply:
			if !h.clients[msg.client] {
				continue
			}
			select {
			case msg.client.Send <- msg.message:
			default:
				h.drop(msg.client)
			}
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// Stop terminates Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client. It is a no-op once the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastTo sends a message to all clients subscribed to userID's feed.
// It is safe to call from any goroutine.
func (h *Hub) BroadcastTo(userID string, message []byte) {
	select {
	case h.direct <- directMessage{userID: userID, message: message}:
	case <-h.done:
	}
}

// Reply sends a message to a single client if it is still registered.
func (h *Hub) Reply(client *Client, message []byte) {
	select {
	case h.reply <- clientMessage{client: client, message: message}:
	case <-h.done:
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client, userID string) {
	if h.subscriptions[userID] == nil {
		h.subscriptions[userID] = make(map[*Client]bool)
	}
	h.subscriptions[userID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	subs, ok := h.subscriptions[client.UserID]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.subscriptions, client.UserID)
	}
}
