package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-feed-be/internal/services"
)

// LikeHandler handles HTTP requests for likes.
type LikeHandler struct {
	service services.ContentServiceProvider
	views   services.EngagementViewer
}

// NewLikeHandler creates a new LikeHandler.
func NewLikeHandler(service services.ContentServiceProvider, views services.EngagementViewer) *LikeHandler {
	return &LikeHandler{service: service, views: views}
}

// Add handles {userId} liking {postId}.
func (h *LikeHandler) Add(w http.ResponseWriter, r *http.Request) {
	like, err := h.service.AddLike(r.Context(), chi.URLParam(r, "postId"), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err, "Failed to add like")
		return
	}
	writeJSON(w, http.StatusCreated, like)
}

// Remove handles {userId} unliking {postId}.
func (h *LikeHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveLike(r.Context(), chi.URLParam(r, "postId"), chi.URLParam(r, "userId")); err != nil {
		writeError(w, err, "Failed to remove like")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HasLiked reports whether {userId} likes {postId}.
func (h *LikeHandler) HasLiked(w http.ResponseWriter, r *http.Request) {
	liked, err := h.service.HasUserLiked(r.Context(), chi.URLParam(r, "postId"), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err, "Failed to check like")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// GetByPost lists the likes on {postId} with the likers' names.
func (h *LikeHandler) GetByPost(w http.ResponseWriter, r *http.Request) {
	likes, err := h.views.GetLikeViews(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err, "Failed to list likes")
		return
	}
	writeJSON(w, http.StatusOK, likes)
}

// Count returns the number of likes on {postId}.
func (h *LikeHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CountLikes(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeError(w, err, "Failed to count likes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
