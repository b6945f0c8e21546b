package models

import "time"

// LikeView is a like rendered with the liker's display name.
type LikeView struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	LikedAt  time.Time `json:"likedAt"`
}

// CommentView is a comment rendered with the commenter's display name.
type CommentView struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	Text        string    `json:"text"`
	CommentedAt time.Time `json:"commentedAt"`
}

// EnrichedPost is a feed entry: a post joined with its engagement.
type EnrichedPost struct {
	PostID         string        `json:"postId"`
	AuthorID       string        `json:"authorId"`
	AuthorUsername string        `json:"authorUsername"`
	Content        string        `json:"content"`
	CreatedAt      time.Time     `json:"createdAt"`
	Likes          []LikeView    `json:"likes"`
	Comments       []CommentView `json:"comments"`
	LikeCount      int           `json:"likeCount"`
	CommentCount   int           `json:"commentCount"`
}
