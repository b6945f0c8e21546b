package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-feed-be/internal/services"
)

// PostHandler handles HTTP requests for posts.
type PostHandler struct {
	service services.ContentServiceProvider
	views   services.EngagementViewer
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service services.ContentServiceProvider, views services.EngagementViewer) *PostHandler {
	return &PostHandler{service: service, views: views}
}

// CreatePostPayload defines the structure for new posts.
type CreatePostPayload struct {
	AuthorID string `json:"authorId"`
	Content  string `json:"content"`
}

// Create handles publishing a new post.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreatePostPayload
	if !decode(w, r, &payload) {
		return
	}
	post, err := h.service.CreatePost(r.Context(), payload.AuthorID, payload.Content)
	if err != nil {
		writeError(w, err, "Failed to create post")
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Get handles retrieving a single post.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to get post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// GetAll handles listing every post, newest first.
func (h *PostHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context())
	if err != nil {
		writeError(w, err, "Failed to list posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// Delete handles removing a post and its engagement.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "Failed to delete post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Likers lists the users who like post {id}.
func (h *PostHandler) Likers(w http.ResponseWriter, r *http.Request) {
	users, err := h.views.GetLikers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to list likers")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Commenters lists the users who commented on post {id}.
func (h *PostHandler) Commenters(w http.ResponseWriter, r *http.Request) {
	users, err := h.views.GetCommenters(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to list commenters")
		return
	}
	writeJSON(w, http.StatusOK, users)
}
