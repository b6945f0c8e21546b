package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-feed-be/internal/services"
)

// CommentHandler handles HTTP requests for comments.
type CommentHandler struct {
	service services.ContentServiceProvider
	views   services.EngagementViewer
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(service services.ContentServiceProvider, views services.EngagementViewer) *CommentHandler {
	return &CommentHandler{service: service, views: views}
}

// AddCommentPayload defines the structure for new comments.
type AddCommentPayload struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// Add handles commenting on {id}.
func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	var payload AddCommentPayload
	if !decode(w, r, &payload) {
		return
	}
	comment, err := h.service.AddComment(r.Context(), chi.URLParam(r, "id"), payload.UserID, payload.Text)
	if err != nil {
		writeError(w, err, "Failed to add comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// GetByPost lists the comments on {id}, newest first.
func (h *CommentHandler) GetByPost(w http.ResponseWriter, r *http.Request) {
	comments, err := h.views.GetCommentViews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// Count returns the number of comments on {id}.
func (h *CommentHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CountComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to count comments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// Delete removes comment {id} on behalf of the ?userId= requester.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("userId")
	if err := h.service.DeleteComment(r.Context(), userID, commentID); err != nil {
		writeError(w, err, "Failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
