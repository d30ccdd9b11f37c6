package domain

import "time"

// Post is a forum submission as fetched from a channel. Immutable once fetched.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Subreddit   string    `json:"subreddit"`
	Author      *string   `json:"author,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
}

// Comment belongs to a Post through PostID.
type Comment struct {
	ID        string    `json:"comment_id"`
	PostID    string    `json:"post_id"`
	Body      string    `json:"body"`
	Author    *string   `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Score     int       `json:"score"`
	ParentID  string    `json:"parent_id"`

	// KeywordMatch is the fetch-time keyword pre-filter flag. Informational only.
	KeywordMatch bool `json:"is_related"`
}

// ChannelError records a channel that could not be fetched.
type ChannelError struct {
	Channel string `json:"channel"`
	Error   string `json:"error"`
}
