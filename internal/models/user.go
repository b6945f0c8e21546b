package models

import "time"

// User represents an account in the social graph.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserSummary is the public view of a user returned by follower/following listings.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
