package services

import (
	"context"
	"fmt"

	"github.com/isdelr/ender-feed-be/internal/metrics"
	"github.com/isdelr/ender-feed-be/internal/models"
)

// UnknownUser is shown for engaging users whose identity cannot be resolved.
const UnknownUser = "Unknown"

// EngagementAggregator turns the user IDs behind a post's engagement into display names.
type EngagementAggregator interface {
	ResolveNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// EngagementService is a stateless EngagementAggregator over a NameResolver.
type EngagementService struct {
	resolver NameResolver
}

// NewEngagementService creates a new EngagementService.
func NewEngagementService(resolver NameResolver) *EngagementService {
	return &EngagementService{resolver: resolver}
}

// ResolveNames looks up every distinct ID with exactly one resolver call.
// IDs with no matching user are absent from the result.
func (s *EngagementService) ResolveNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	metrics.EngagementBatchSize.Observe(float64(len(ids)))

	names, err := s.resolver.GetUsernames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve %d user names: %w", len(ids), err)
	}
	return names, nil
}

// DisplayName returns the resolved name for id, or UnknownUser.
func DisplayName(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return UnknownUser
}

// CollectUserIDs gathers the author and every liking or commenting user.
func CollectUserIDs(authorID string, likes []models.Like, comments []models.Comment) []string {
	ids := make([]string, 0, 1+len(likes)+len(comments))
	ids = append(ids, authorID)
	for _, l := range likes {
		ids = append(ids, l.UserID)
	}
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	return dedupe(ids)
}

// Enrich joins a post with its engagement using already resolved names.
func Enrich(post models.Post, likes []models.Like, comments []models.Comment, names map[string]string) models.EnrichedPost {
	return models.EnrichedPost{
		PostID:         post.ID,
		AuthorID:       post.AuthorID,
		AuthorUsername: DisplayName(names, post.AuthorID),
		Content:        post.Content,
		CreatedAt:      post.CreatedAt,
		Likes:          LikeViews(likes, names),
		Comments:       CommentViews(comments, names),
		LikeCount:      len(likes),
		CommentCount:   len(comments),
	}
}

// LikeViews renders likes with display names, keeping their order.
func LikeViews(likes []models.Like, names map[string]string) []models.LikeView {
	out := make([]models.LikeView, 0, len(likes))
	for _, l := range likes {
		out = append(out, models.LikeView{
			UserID:   l.UserID,
			Username: DisplayName(names, l.UserID),
			LikedAt:  l.LikedAt,
		})
	}
	return out
}

// CommentViews renders comments with display names, keeping their order.
func CommentViews(comments []models.Comment, names map[string]string) []models.CommentView {
	out := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, models.CommentView{
			ID:          c.ID,
			UserID:      c.UserID,
			Username:    DisplayName(names, c.UserID),
			Text:        c.Text,
			CommentedAt: c.CommentedAt,
		})
	}
	return out
}
