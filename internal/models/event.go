package models

import "time"

// Event represents an entry in the activity log.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "graph.follow", "post.created"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	UserID    *string   `json:"userId,omitempty"` // Nullable for system-wide events
	CreatedAt time.Time `json:"createdAt"`
}
