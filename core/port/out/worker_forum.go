package out

import (
	"context"

	"report_worker/core/domain"
)

// FetchQuery selects posts for a set of channels in a month (or a whole year
// when Month is 0), keeping only posts matching one of Keywords.
type FetchQuery struct {
	Channels []string
	Keywords []string
	Year     int
	Month    int
	Limit    int // posts checked per channel
}

// ForumData is what the forum fetcher hands to the core.
type ForumData struct {
	Posts           []domain.Post
	Comments        []domain.Comment
	SkippedChannels []domain.ChannelError
}

// ForumFetcher is the upstream forum boundary.
type ForumFetcher interface {
	Fetch(ctx context.Context, query FetchQuery) (*ForumData, error)
}
