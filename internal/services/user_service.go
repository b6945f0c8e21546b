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
)

// NameResolver resolves user IDs into display names in one batched call.
// Unknown IDs are absent from the result.
type NameResolver interface {
	GetUsernames(ctx context.Context, ids []string) (map[string]string, error)
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	NameResolver
	CreateUser(ctx context.Context, username, email string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db     *database.DB
	events EventServiceProvider
}

// NewUserService creates a new UserService. events may be nil.
func NewUserService(db *database.DB, events EventServiceProvider) *UserService {
	return &UserService{db: db, events: events}
}

// CreateUser registers a new user. Emails are unique.
func (s *UserService) CreateUser(ctx context.Context, username, email string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return models.User{}, fmt.Errorf("username and email are required: %w", ErrInvalidOperation)
	}

	user := models.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO users (id, username, email, created_at) VALUES (?, ?, ?, ?)"),
		user.ID, user.Username, user.Email, database.ToUnix(user.CreatedAt))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, fmt.Errorf("user with email %s already exists: %w", email, ErrConflict)
		}
		return models.User{}, err
	}

	recordEvent(ctx, s.events, "user.created", "info", fmt.Sprintf("User '%s' registered.", user.Username), user.ID)
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var (
		user      models.User
		createdAt int64
	)
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT id, username, email, created_at FROM users WHERE id = ?"), id)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return models.User{}, err
	}
	user.CreatedAt = database.FromUnix(createdAt)
	return user, nil
}

// GetUsersByIDs retrieves every user whose ID is in ids, ordered by username.
// Missing IDs are skipped.
func (s *UserService) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return users, nil
	}
	query := "SELECT id, username, email, created_at FROM users WHERE " + s.db.MemberOf("id")
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), database.JSONList(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			user      models.User
			createdAt int64
		)
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &createdAt); err != nil {
			return nil, err
		}
		user.CreatedAt = database.FromUnix(createdAt)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortUsers(users)
	return users, nil
}

// GetUsernames maps user IDs to usernames with a single batched query.
func (s *UserService) GetUsernames(ctx context.Context, ids []string) (map[string]string, error) {
	ids = dedupe(ids)
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	query := "SELECT id, username FROM users WHERE " + s.db.MemberOf("id")
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), database.JSONList(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, err
		}
		names[id] = username
	}
	return names, rows.Err()
}
