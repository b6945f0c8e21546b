package websocket

import (
	"context"

	"github.com/isdelr/ender-feed-be/internal/models"
	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/rs/zerolog/log"
)

// Broadcaster delivers a message to every client watching a user's feed.
type Broadcaster interface {
	BroadcastTo(userID string, message []byte)
}

// FollowerNotifier pushes new posts to the live feeds of the author's followers.
type FollowerNotifier struct {
	graph services.GraphServiceProvider
	hub   Broadcaster
}

// NewFollowerNotifier creates a new FollowerNotifier.
func NewFollowerNotifier(graph services.GraphServiceProvider, hub Broadcaster) *FollowerNotifier {
	return &FollowerNotifier{graph: graph, hub: hub}
}

// PostCreated implements services.PostNotifier.
func (n *FollowerNotifier) PostCreated(ctx context.Context, post models.Post) {
	followers, err := n.graph.GetFollowers(ctx, post.AuthorID)
	if err != nil {
		log.Warn().Err(err).Str("post_id", post.ID).Msg("Could not notify followers of new post")
		return
	}
	if len(followers) == 0 {
		return
	}

	msg := NewMessage(ActionPostCreated, post)
	if msg == nil {
		return
	}
	for _, id := range followers {
		n.hub.BroadcastTo(id, msg)
	}
}
