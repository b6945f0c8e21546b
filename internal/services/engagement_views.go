package services

import (
	"context"

	"github.com/isdelr/ender-feed-be/internal/models"
)

// EngagementViewer lists the engagement on a single post with display names.
type EngagementViewer interface {
	GetLikeViews(ctx context.Context, postID string) ([]models.LikeView, error)
	GetCommentViews(ctx context.Context, postID string) ([]models.CommentView, error)
	GetLikers(ctx context.Context, postID string) ([]models.UserSummary, error)
	GetCommenters(ctx context.Context, postID string) ([]models.UserSummary, error)
}

// EngagementViewService resolves every listing with one name batch per post.
type EngagementViewService struct {
	content    ContentServiceProvider
	engagement EngagementAggregator
}

// NewEngagementViewService creates a new EngagementViewService.
func NewEngagementViewService(content ContentServiceProvider, engagement EngagementAggregator) *EngagementViewService {
	return &EngagementViewService{content: content, engagement: engagement}
}

// GetLikeViews returns the likes on postID, most recent first. Unknown posts
// yield ErrNotFound.
func (s *EngagementViewService) GetLikeViews(ctx context.Context, postID string) ([]models.LikeView, error) {
	likes, names, err := s.likes(ctx, postID)
	if err != nil {
		return nil, err
	}
	return LikeViews(likes, names), nil
}

// GetCommentViews returns the comments on postID, most recent first.
func (s *EngagementViewService) GetCommentViews(ctx context.Context, postID string) ([]models.CommentView, error) {
	comments, names, err := s.comments(ctx, postID)
	if err != nil {
		return nil, err
	}
	return CommentViews(comments, names), nil
}

// GetLikers returns each user who likes postID once, most recent like first.
func (s *EngagementViewService) GetLikers(ctx context.Context, postID string) ([]models.UserSummary, error) {
	likes, names, err := s.likes(ctx, postID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.UserID)
	}
	return summaries(ids, names), nil
}

// GetCommenters returns each user who commented on postID once, by their
// most recent comment.
func (s *EngagementViewService) GetCommenters(ctx context.Context, postID string) ([]models.UserSummary, error) {
	comments, names, err := s.comments(ctx, postID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	return summaries(ids, names), nil
}

func (s *EngagementViewService) likes(ctx context.Context, postID string) ([]models.Like, map[string]string, error) {
	if _, err := s.content.GetPost(ctx, postID); err != nil {
		return nil, nil, err
	}
	likes, err := s.content.GetLikesByPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	names, err := s.engagement.ResolveNames(ctx, CollectUserIDs("", likes, nil))
	if err != nil {
		return nil, nil, err
	}
	return likes, names, nil
}

func (s *EngagementViewService) comments(ctx context.Context, postID string) ([]models.Comment, map[string]string, error) {
	if _, err := s.content.GetPost(ctx, postID); err != nil {
		return nil, nil, err
	}
	comments, err := s.content.GetCommentsByPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	names, err := s.engagement.ResolveNames(ctx, CollectUserIDs("", nil, comments))
	if err != nil {
		return nil, nil, err
	}
	return comments, names, nil
}

func summaries(ids []string, names map[string]string) []models.UserSummary {
	ids = dedupe(ids)
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.UserSummary{ID: id, Username: DisplayName(names, id)})
	}
	return out
}
