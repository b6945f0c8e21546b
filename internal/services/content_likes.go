package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/isdelr/ender-feed-be/internal/database"
	"github.com/isdelr/ender-feed-be/internal/models"
)

// AddLike records that userID likes postID. Liking twice returns the existing like.
func (s *ContentService) AddLike(ctx context.Context, postID, userID string) (models.Like, error) {
	if err := s.ensurePostAndUser(ctx, postID, userID); err != nil {
		return models.Like{}, err
	}

	// A conflicting like can be removed before it is read back; the insert
	// is retried once before giving up.
	for attempt := 0; ; attempt++ {
		like, inserted, err := s.insertLike(ctx, postID, userID)
		if err != nil {
			return models.Like{}, err
		}
		if inserted {
			recordEvent(ctx, s.events, "like.added", "info", fmt.Sprintf("User %s liked post %s.", userID, postID), userID)
			return like, nil
		}
		existing, err := s.getLike(ctx, postID, userID)
		if errors.Is(err, ErrNotFound) && attempt == 0 {
			continue
		}
		return existing, err
	}
}

func (s *ContentService) insertLike(ctx context.Context, postID, userID string) (models.Like, bool, error) {
	like := models.Like{
		ID:      uuid.New().String(),
		PostID:  postID,
		UserID:  userID,
		LikedAt: s.now().UTC(),
	}
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO likes (id, post_id, user_id, liked_at) VALUES (?, ?, ?, ?) ON CONFLICT (post_id, user_id) DO NOTHING"),
		like.ID, like.PostID, like.UserID, database.ToUnix(like.LikedAt))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return like, false, nil
		}
		return like, false, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return like, false, nil
	}
	return like, true, nil
}

// RemoveLike deletes userID's like on postID.
func (s *ContentService) RemoveLike(ctx context.Context, postID, userID string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM likes WHERE post_id = ? AND user_id = ?"), postID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("like by %s on post %s: %w", userID, postID, ErrNotFound)
	}
	return nil
}

// HasUserLiked reports whether userID currently likes postID.
func (s *ContentService) HasUserLiked(ctx context.Context, postID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT COUNT(*) FROM likes WHERE post_id = ? AND user_id = ?"), postID, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetLikesByPost returns the likes on postID, most recent first.
func (s *ContentService) GetLikesByPost(ctx context.Context, postID string) ([]models.Like, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind("SELECT id, post_id, user_id, liked_at FROM likes WHERE post_id = ? ORDER BY liked_at DESC, id DESC"), postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	likes := []models.Like{}
	for rows.Next() {
		var (
			like    models.Like
			likedAt int64
		)
		if err := rows.Scan(&like.ID, &like.PostID, &like.UserID, &likedAt); err != nil {
			return nil, err
		}
		like.LikedAt = database.FromUnix(likedAt)
		likes = append(likes, like)
	}
	return likes, rows.Err()
}

// CountLikes returns the number of likes on postID.
func (s *ContentService) CountLikes(ctx context.Context, postID string) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM likes WHERE post_id = ?", postID)
}

func (s *ContentService) getLike(ctx context.Context, postID, userID string) (models.Like, error) {
	var (
		like    models.Like
		likedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT id, post_id, user_id, liked_at FROM likes WHERE post_id = ? AND user_id = ?"), postID, userID).
		Scan(&like.ID, &like.PostID, &like.UserID, &likedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Like{}, fmt.Errorf("like by %s on post %s: %w", userID, postID, ErrNotFound)
	}
	if err != nil {
		return models.Like{}, err
	}
	like.LikedAt = database.FromUnix(likedAt)
	return like, nil
}
