package models

import "time"

// Like records that a user liked a post. At most one exists per (PostID, UserID).
type Like struct {
	ID      string    `json:"id"`
	PostID  string    `json:"postId"`
	UserID  string    `json:"userId"`
	LikedAt time.Time `json:"likedAt"`
}

// Comment is a text reply to a post. Only its author may delete it.
type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"postId"`
	UserID      string    `json:"userId"`
	Text        string    `json:"text"`
	CommentedAt time.Time `json:"commentedAt"`
}
