// Package reddit fetches posts and comments from subreddits with app-only OAuth.
package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"report_worker/core/domain"
	"report_worker/core/port/out"
	"report_worker/pkg/httputil"
	"report_worker/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	maxPageSize     = 100
	moreBatchSize   = 100
	defaultLimit    = 1000
)

var removedBodies = map[string]struct{}{"[deleted]": {}, "[removed]": {}}

type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	BaseURL      string
	TokenURL     string
	PageSize     int
	ChannelPause time.Duration  // wait between channels
	Location     *time.Location // month boundaries; UTC when nil
	Timeout      time.Duration
}

// DefaultConfig returns production endpoints with a one second channel pause.
func DefaultConfig() Config {
	return Config{
		UserAgent:    "report-worker/1.0",
		BaseURL:      defaultBaseURL,
		TokenURL:     defaultTokenURL,
		PageSize:     maxPageSize,
		ChannelPause: time.Second,
		Location:     time.UTC,
		Timeout:      30 * time.Second,
	}
}

// Client implements out.ForumFetcher against the Reddit API.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.CircuitBreaker
	log     zerolog.Logger
}

var _ out.ForumFetcher = (*Client)(nil)

// NewClient builds the OAuth client. Tokens are fetched lazily on first use.
// breaker may be nil.
func NewClient(cfg Config, breaker *resilience.CircuitBreaker, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{agent: cfg.UserAgent, next: httputil.NewTransport(httputil.RedditClientConfig())},
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := cc.Client(ctx)
	client.Timeout = cfg.Timeout

	return &Client{
		cfg:     cfg,
		client:  client,
		breaker: breaker,
		log:     log.With().Str("component", "reddit").Logger(),
	}
}

// MonthWindow returns [start, end) for a month, or for the whole year when
// month is 0.
func MonthWindow(year, month int, loc *time.Location) (time.Time, time.Time) {
	if month == 0 {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Fetch walks each channel's newest posts inside the query window. A channel
// that fails is recorded in SkippedChannels and the fetch continues; it is an
// error only when every channel failed.
func (c *Client) Fetch(ctx context.Context, q out.FetchQuery) (*out.ForumData, error) {
	start, end := MonthWindow(q.Year, q.Month, c.cfg.Location)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	keywords := make([]string, 0, len(q.Keywords))
	for _, k := range q.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	data := &out.ForumData{Posts: []domain.Post{}, Comments: []domain.Comment{}}
	for i, channel := range q.Channels {
		if i > 0 && c.cfg.ChannelPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.ChannelPause):
			}
		}

		posts, comments, checked, err := c.fetchChannel(ctx, channel, limit, start, end, keywords)
		data.Posts = append(data.Posts, posts...)
		data.Comments = append(data.Comments, comments...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str("channel", channel).Msg("skipping channel")
			data.SkippedChannels = append(data.SkippedChannels, domain.ChannelError{Channel: channel, Error: err.Error()})
			continue
		}
		c.log.Info().
			Str("channel", channel).
			Int("checked", checked).
			Int("posts", len(posts)).
			Int("comments", len(comments)).
			Msg("channel fetched")
	}

	if n := len(q.Channels); n > 0 && len(data.SkippedChannels) == n {
		return nil, fmt.Errorf("all %d channels failed, first: %s", n, data.SkippedChannels[0].Error)
	}
	return data, nil
}

func (c *Client) fetchChannel(ctx context.Context, channel string, limit int, start, end time.Time, keywords []string) ([]domain.Post, []domain.Comment, int, error) {
	var (
		posts    []domain.Post
		comments []domain.Comment
		after    string
		checked  int
	)

	for checked < limit {
		pageSize := c.cfg.PageSize
		if rest := limit - checked; rest < pageSize {
			pageSize = rest
		}

		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("raw_json", "1")
		if after != "" {
			q.Set("after", after)
		}
		var page listing
		if err := c.get(ctx, "/r/"+url.PathEscape(channel)+"/new", q, &page); err != nil {
			return posts, comments, checked, err
		}
		if len(page.Data.Children) == 0 {
			break
		}

		older := false
		for _, t := range page.Data.Children {
			if t.Kind != kindPost {
				continue
			}
			checked++
			var p postData
			if err := json.Unmarshal(t.Data, &p); err != nil {
				return posts, comments, checked, fmt.Errorf("decode post: %w", err)
			}

			created := unixTime(p.CreatedUTC)
			if !created.Before(end) {
				continue
			}
			if created.Before(start) {
				// /new is newest first, nothing further can be in range
				older = true
				break
			}
			if !containsAny(p.Title+" "+p.Selftext, keywords) {
				continue
			}

			posts = append(posts, domain.Post{
				ID:          p.ID,
				Title:       p.Title,
				Body:        p.Selftext,
				Subreddit:   channel,
				Author:      authorPtr(p.Author),
				URL:         p.URL,
				CreatedAt:   created,
				Score:       p.Score,
				NumComments: p.NumComments,
			})

			postComments, err := c.fetchComments(ctx, p.ID, keywords)
			if err != nil {
				if ctx.Err() != nil {
					return posts, comments, checked, ctx.Err()
				}
				c.log.Warn().Err(err).Str("post_id", p.ID).Msg("fetching comments failed")
			}
			comments = append(comments, postComments...)

			if checked >= limit {
				break
			}
		}

		if older || page.Data.After == "" {
			break
		}
		after = page.Data.After
	}
	return posts, comments, checked, nil
}

// fetchComments flattens the whole comment tree of a post, expanding "more"
// stubs, and drops deleted or removed comments.
func (c *Client) fetchComments(ctx context.Context, postID string, keywords []string) ([]domain.Comment, error) {
	var listings []listing
	q := url.Values{}
	q.Set("raw_json", "1")
	q.Set("limit", "500")
	if err := c.get(ctx, "/comments/"+url.PathEscape(postID), q, &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 {
		return nil, nil
	}

	var (
		raw  []commentData
		more []string
	)
	if err := walk(listings[1].Data.Children, &raw, &more); err != nil {
		return nil, err
	}

	requested := make(map[string]struct{})
	for len(more) > 0 {
		batch := make([]string, 0, moreBatchSize)
		for len(more) > 0 && len(batch) < moreBatchSize {
			id := more[0]
			more = more[1:]
			if _, ok := requested[id]; ok || id == "_" {
				continue
			}
			requested[id] = struct{}{}
			batch = append(batch, id)
		}
		if len(batch) == 0 {
			break
		}

		things, err := c.moreChildren(ctx, postID, batch)
		if err != nil {
			c.log.Warn().Err(err).Str("post_id", postID).Int("ids", len(batch)).Msg("expanding more comments failed")
			break
		}
		if err := walk(things, &raw, &more); err != nil {
			return nil, err
		}
	}

	comments := make([]domain.Comment, 0, len(raw))
	for _, d := range raw {
		if _, gone := removedBodies[d.Body]; gone {
			continue
		}
		comments = append(comments, domain.Comment{
			ID:           d.ID,
			PostID:       postID,
			Body:         d.Body,
			Author:       authorPtr(d.Author),
			CreatedAt:    unixTime(d.CreatedUTC),
			Score:        d.Score,
			ParentID:     d.ParentID,
			KeywordMatch: d.Body != "" && containsAny(d.Body, keywords),
		})
	}
	return comments, nil
}

func (c *Client) moreChildren(ctx context.Context, postID string, ids []string) ([]thing, error) {
	q := url.Values{}
	q.Set("api_type", "json")
	q.Set("raw_json", "1")
	q.Set("link_id", "t3_"+postID)
	q.Set("children", strings.Join(ids, ","))

	var resp moreChildrenResponse
	if err := c.get(ctx, "/api/morechildren", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.JSON.Errors) > 0 {
		return nil, fmt.Errorf("morechildren: %v", resp.JSON.Errors[0])
	}
	return resp.JSON.Data.Things, nil
}

// walk appends comments depth first and collects ids hidden behind "more" stubs.
func walk(children []thing, comments *[]commentData, more *[]string) error {
	for _, t := range children {
		switch t.Kind {
		case kindComment:
			var d commentData
			if err := json.Unmarshal(t.Data, &d); err != nil {
				return fmt.Errorf("decode comment: %w", err)
			}
			*comments = append(*comments, d)
			if len(d.Replies) > 0 && d.Replies[0] == '{' {
				var replies listing
				if err := json.Unmarshal(d.Replies, &replies); err != nil {
					return fmt.Errorf("decode replies: %w", err)
				}
				if err := walk(replies.Data.Children, comments, more); err != nil {
					return err
				}
			}
		case kindMore:
			var m moreData
			if err := json.Unmarshal(t.Data, &m); err != nil {
				return fmt.Errorf("decode more: %w", err)
			}
			*more = append(*more, m.Children...)
		}
	}
	return nil
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// HTTP helpers

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	_, err = resilience.Execute(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.doRequest(req, result)
	})
	return err
}

func (c *Client) doRequest(req *http.Request, result any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reddit API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent == "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.next.RoundTrip(r)
}
