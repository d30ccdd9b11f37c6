package reddit

import (
	"math"
	"time"

	"github.com/goccy/go-json"
)

// Reddit API listing types

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	URL         string  `json:"url"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

type commentData struct {
	ID         string          `json:"id"`
	Body       string          `json:"body"`
	Author     string          `json:"author"`
	ParentID   string          `json:"parent_id"`
	CreatedUTC float64         `json:"created_utc"`
	Score      int             `json:"score"`
	Replies    json.RawMessage `json:"replies"` // "" or a listing
}

type moreData struct {
	Children []string `json:"children"`
}

type moreChildrenResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

const (
	kindPost    = "t3"
	kindComment = "t1"
	kindMore    = "more"
)

func unixTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func authorPtr(name string) *string {
	if name == "" {
		return nil
	}
	return &name
}
