package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-feed-be/internal/database"
	"github.com/isdelr/ender-feed-be/internal/models"
	"golang.org/x/sync/errgroup"
)

// ContentStore is the read side the feed depends on.
type ContentStore interface {
	GetPostsByAuthors(ctx context.Context, authorIDs []string) ([]models.Post, error)
	GetLikesByPost(ctx context.Context, postID string) ([]models.Like, error)
	GetCommentsByPost(ctx context.Context, postID string) ([]models.Comment, error)
}

// ContentServiceProvider defines the interface for posts, likes and comments.
type ContentServiceProvider interface {
	ContentStore

	CreatePost(ctx context.Context, authorID, content string) (models.Post, error)
	GetPost(ctx context.Context, postID string) (models.Post, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	DeletePost(ctx context.Context, postID string) error

	AddLike(ctx context.Context, postID, userID string) (models.Like, error)
	RemoveLike(ctx context.Context, postID, userID string) error
	HasUserLiked(ctx context.Context, postID, userID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int, error)

	AddComment(ctx context.Context, postID, userID, text string) (models.Comment, error)
	DeleteComment(ctx context.Context, requestingUserID, commentID string) error
	CountComments(ctx context.Context, postID string) (int, error)
}

// PostNotifier is told about every newly created post.
type PostNotifier interface {
	PostCreated(ctx context.Context, post models.Post)
}

// ContentService provides business logic for posts and their engagement.
type ContentService struct {
	db       *database.DB
	users    UserServiceProvider
	events   EventServiceProvider
	notifier PostNotifier
	now      func() time.Time
}

// NewContentService creates a new ContentService. events and notifier may be nil.
func NewContentService(db *database.DB, users UserServiceProvider, events EventServiceProvider, notifier PostNotifier) *ContentService {
	return &ContentService{
		db:       db,
		users:    users,
		events:   events,
		notifier: notifier,
		now:      time.Now,
	}
}

const postColumns = "id, author_id, content, created_at"

// CreatePost stores a new post for an existing author.
func (s *ContentService) CreatePost(ctx context.Context, authorID, content string) (models.Post, error) {
	if strings.TrimSpace(content) == "" {
		return models.Post{}, fmt.Errorf("post content is required: %w", ErrInvalidOperation)
	}
	if _, err := s.users.GetUserByID(ctx, authorID); err != nil {
		return models.Post{}, err
	}

	post := models.Post{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO posts (id, author_id, content, created_at) VALUES (?, ?, ?, ?)"),
		post.ID, post.AuthorID, post.Content, database.ToUnix(post.CreatedAt))
	if err != nil {
		return models.Post{}, err
	}

	recordEvent(ctx, s.events, "post.created", "info", fmt.Sprintf("User %s published post %s.", authorID, post.ID), authorID)
	if s.notifier != nil {
		s.notifier.PostCreated(ctx, post)
	}
	return post, nil
}

// GetPost retrieves a single post by its ID.
func (s *ContentService) GetPost(ctx context.Context, postID string) (models.Post, error) {
	var (
		post      models.Post
		createdAt int64
	)
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+postColumns+" FROM posts WHERE id = ?"), postID)
	if err := row.Scan(&post.ID, &post.AuthorID, &post.Content, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Post{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
		}
		return models.Post{}, err
	}
	post.CreatedAt = database.FromUnix(createdAt)
	return post, nil
}

// ListPosts returns every post, newest first.
func (s *ContentService) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.queryPosts(ctx, "SELECT "+postColumns+" FROM posts ORDER BY created_at DESC, id DESC")
}

// GetPostsByAuthors returns all posts by the given authors ordered by
// created_at descending, ties broken by ID descending.
func (s *ContentService) GetPostsByAuthors(ctx context.Context, authorIDs []string) ([]models.Post, error) {
	authors := dedupe(authorIDs)
	if len(authors) == 0 {
		return []models.Post{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM posts WHERE %s ORDER BY created_at DESC, id DESC",
		postColumns, s.db.MemberOf("author_id"))
	return s.queryPosts(ctx, query, database.JSONList(authors))
}

// DeletePost removes a post together with its likes and comments.
func (s *ContentService) DeletePost(ctx context.Context, postID string) error {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		"DELETE FROM likes WHERE post_id = ?",
		"DELETE FROM comments WHERE post_id = ?",
		"DELETE FROM posts WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(q), postID); err != nil {
			return fmt.Errorf("delete post %s: %w", postID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	recordEvent(ctx, s.events, "post.deleted", "info", fmt.Sprintf("Post %s was deleted.", postID), post.AuthorID)
	return nil
}

// ensurePostAndUser checks both records concurrently.
func (s *ContentService) ensurePostAndUser(ctx context.Context, postID, userID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.GetPost(gctx, postID)
		return err
	})
	g.Go(func() error {
		_, err := s.users.GetUserByID(gctx, userID)
		return err
	})
	return g.Wait()
}

func (s *ContentService) count(ctx context.Context, query, postID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.db.Rebind(query), postID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *ContentService) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var (
			post      models.Post
			createdAt int64
		)
		if err := rows.Scan(&post.ID, &post.AuthorID, &post.Content, &createdAt); err != nil {
			return nil, err
		}
		post.CreatedAt = database.FromUnix(createdAt)
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
