package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-feed-be/internal/models"
	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for users and their follow graph.
type UserHandler struct {
	users services.UserServiceProvider
	graph services.GraphServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users services.UserServiceProvider, graph services.GraphServiceProvider) *UserHandler {
	return &UserHandler{users: users, graph: graph}
}

// CreateUserPayload defines the structure for registration requests.
type CreateUserPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Create handles new user registration.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreateUserPayload
	if !decode(w, r, &payload) {
		return
	}

	user, err := h.users.CreateUser(r.Context(), payload.Username, payload.Email)
	if err != nil {
		writeError(w, err, "Failed to register user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Follow makes {id} follow {targetId}.
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	id, target := chi.URLParam(r, "id"), chi.URLParam(r, "targetId")
	if err := h.graph.Follow(r.Context(), id, target); err != nil {
		log.Warn().Err(err).Str("user_id", id).Str("target_id", target).Msg("Follow failed")
		writeError(w, err, "Failed to follow user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unfollow makes {id} stop following {targetId}.
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	id, target := chi.URLParam(r, "id"), chi.URLParam(r, "targetId")
	if err := h.graph.Unfollow(r.Context(), id, target); err != nil {
		log.Warn().Err(err).Str("user_id", id).Str("target_id", target).Msg("Unfollow failed")
		writeError(w, err, "Failed to unfollow user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Following lists the users {id} follows.
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, h.graph.GetFollowees)
}

// Followers lists the users following {id}.
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, h.graph.GetFollowers)
}

// FollowingCount returns how many users {id} follows.
func (h *UserHandler) FollowingCount(w http.ResponseWriter, r *http.Request) {
	h.countEdges(w, r, h.graph.FollowingCount)
}

// FollowersCount returns how many users follow {id}.
func (h *UserHandler) FollowersCount(w http.ResponseWriter, r *http.Request) {
	h.countEdges(w, r, h.graph.FollowersCount)
}

func (h *UserHandler) listEdges(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, userID string) ([]string, error)) {
	id := chi.URLParam(r, "id")
	ids, err := list(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to list follow edges")
		return
	}
	users, err := h.users.GetUsersByIDs(r.Context(), ids)
	if err != nil {
		writeError(w, err, "Failed to load users")
		return
	}

	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, models.UserSummary{ID: u.ID, Username: u.Username})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UserHandler) countEdges(w http.ResponseWriter, r *http.Request, count func(ctx context.Context, userID string) (int, error)) {
	id := chi.URLParam(r, "id")
	n, err := count(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to count follow edges")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
