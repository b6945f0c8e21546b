package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/isdelr/ender-feed-be/internal/database"
	"github.com/isdelr/ender-feed-be/internal/models"
)

// AddComment attaches a comment by userID to postID.
func (s *ContentService) AddComment(ctx context.Context, postID, userID, text string) (models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return models.Comment{}, fmt.Errorf("comment text is required: %w", ErrInvalidOperation)
	}
	if err := s.ensurePostAndUser(ctx, postID, userID); err != nil {
		return models.Comment{}, err
	}

	comment := models.Comment{
		ID:          uuid.New().String(),
		PostID:      postID,
		UserID:      userID,
		Text:        text,
		CommentedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO comments (id, post_id, user_id, text, commented_at) VALUES (?, ?, ?, ?, ?)"),
		comment.ID, comment.PostID, comment.UserID, comment.Text, database.ToUnix(comment.CommentedAt))
	if err != nil {
		return models.Comment{}, err
	}

	recordEvent(ctx, s.events, "comment.added", "info", fmt.Sprintf("User %s commented on post %s.", userID, postID), userID)
	return comment, nil
}

// DeleteComment removes a comment. Only its author may delete it.
func (s *ContentService) DeleteComment(ctx context.Context, requestingUserID, commentID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT user_id FROM comments WHERE id = ?"), commentID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
		}
		return err
	}
	if owner != requestingUserID {
		return fmt.Errorf("user %s cannot delete comment %s: %w", requestingUserID, commentID, ErrForbidden)
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM comments WHERE id = ?"), commentID)
	return err
}

// GetCommentsByPost returns the comments on postID, most recent first.
func (s *ContentService) GetCommentsByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind("SELECT id, post_id, user_id, text, commented_at FROM comments WHERE post_id = ? ORDER BY commented_at DESC, id DESC"), postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var (
			comment     models.Comment
			commentedAt int64
		)
		if err := rows.Scan(&comment.ID, &comment.PostID, &comment.UserID, &comment.Text, &commentedAt); err != nil {
			return nil, err
		}
		comment.CommentedAt = database.FromUnix(commentedAt)
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// CountComments returns the number of comments on postID.
func (s *ContentService) CountComments(ctx context.Context, postID string) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM comments WHERE post_id = ?", postID)
}
