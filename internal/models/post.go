package models

import "time"

// Post is a piece of content authored by a user. Engagement is never embedded;
// it lives in the likes and comments collections keyed by PostID.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
