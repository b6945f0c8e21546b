package handlers

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/rs/zerolog/log"
)

// FeedHandler serves assembled feeds.
type FeedHandler struct {
	feed    services.FeedAssembler
	timeout time.Duration
}

// NewFeedHandler creates a new FeedHandler. A zero timeout disables the deadline.
func NewFeedHandler(feed services.FeedAssembler, timeout time.Duration) *FeedHandler {
	return &FeedHandler{feed: feed, timeout: timeout}
}

// Get streams {userId}'s feed as a JSON array, writing each post as soon as it
// and every newer post are ready.
func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	seq, err := h.feed.GetUserFeed(ctx, userID)
	if err != nil {
		writeError(w, err, "Failed to build feed")
		return
	}

	next, stop := iter.Pull2(seq)
	defer stop()

	// Errors before the first post still get a proper status code.
	post, err, ok := next()
	if ok && err != nil {
		writeError(w, err, "Failed to build feed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	w.Write([]byte("["))
	for n := 0; ok; n++ {
		if err != nil {
			// Headers are gone; a truncated array tells the client the feed is incomplete.
			log.Error().Err(err).Str("user_id", userID).Int("written", n).Msg("Feed stream aborted")
			return
		}
		if n > 0 {
			w.Write([]byte(","))
		}
		if err := enc.Encode(post); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Client went away while streaming feed")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		post, err, ok = next()
	}
	w.Write([]byte("]\n"))
}
