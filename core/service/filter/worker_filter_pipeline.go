package filter

import (
	"context"
	"fmt"

	"report_worker/core/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config controls the pipeline. Concurrency <= 1 runs every call sequentially.
type Config struct {
	Concurrency int
}

// Pipeline runs post classification, then comment classification for the
// posts that survived.
type Pipeline struct {
	classifier  *Classifier
	concurrency int
	log         zerolog.Logger
}

func NewPipeline(classifier *Classifier, cfg Config, log zerolog.Logger) *Pipeline {
	n := cfg.Concurrency
	if n < 1 {
		n = 1
	}
	return &Pipeline{
		classifier:  classifier,
		concurrency: n,
		log:         log.With().Str("component", "filter").Logger(),
	}
}

type postOutcome struct {
	relevant bool
	failed   bool
}

type batchOutcome struct {
	relevant map[string]bool
	sent     int
	called   bool
	failed   bool
}

// Run returns the relevant posts in input order, each with its relevant
// comments in input order. A transport error skips only the affected post or
// comment batch; a cancelled context aborts the run.
func (p *Pipeline) Run(ctx context.Context, posts []domain.Post, comments []domain.Comment, topic string) (*domain.FilterResult, error) {
	stats := domain.FilterStats{PostsIn: len(posts), CommentsIn: len(comments)}

	outcomes := make([]postOutcome, len(posts))
	err := p.forEach(ctx, len(posts), func(ctx context.Context, i int) error {
		relevant, ok, err := p.classifier.ClassifyPost(ctx, ExtractPostText(posts[i]), topic)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn().Err(err).Str("post_id", posts[i].ID).Msg("post classification failed, skipping post")
			outcomes[i].failed = true
			return nil
		}
		outcomes[i].relevant = ok && relevant
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filter posts: %w", err)
	}

	var kept []domain.Post
	for i, o := range outcomes {
		switch {
		case o.failed:
			stats.PostFailures++
		case o.relevant:
			kept = append(kept, posts[i])
		}
	}
	stats.PostsRelevant = len(kept)
	p.log.Info().
		Int("posts_in", len(posts)).
		Int("posts_relevant", len(kept)).
		Int("post_failures", stats.PostFailures).
		Msgf("filtered %d posts to %d posts", len(posts), len(kept))

	byPost := groupByPost(comments)

	batches := make([]batchOutcome, len(kept))
	err = p.forEach(ctx, len(kept), func(ctx context.Context, i int) error {
		group := byPost[kept[i].ID]
		if len(group) == 0 {
			return nil
		}
		inputs := make([]CommentInput, len(group))
		for j, c := range group {
			inputs[j] = CommentInput{CommentID: c.ID, Body: c.Body}
		}

		batches[i].called = true
		relevant, err := p.classifier.ClassifyComments(ctx, ExtractPostText(kept[i]), topic, inputs)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn().Err(err).Str("post_id", kept[i].ID).Int("comments", len(group)).
				Msg("comment classification failed, keeping post without comments")
			batches[i].failed = true
			return nil
		}
		batches[i].relevant = relevant
		batches[i].sent = len(group)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filter comments: %w", err)
	}

	pairs := make([]domain.FilteredPair, 0, len(kept))
	for i, post := range kept {
		b := batches[i]
		if b.called {
			stats.CommentBatches++
		}
		if b.failed {
			stats.CommentBatchFailures++
		}
		stats.CommentsClassified += b.sent

		relevant := []domain.Comment{}
		for _, c := range byPost[post.ID] {
			if b.relevant[c.ID] {
				relevant = append(relevant, c)
			}
		}
		stats.CommentsRelevant += len(relevant)
		pairs = append(pairs, domain.FilteredPair{Post: post, RelevantComments: relevant})
	}

	p.log.Info().
		Int("comment_batches", stats.CommentBatches).
		Int("comments_relevant", stats.CommentsRelevant).
		Int("comment_batch_failures", stats.CommentBatchFailures).
		Msg("comment filtering done")

	return &domain.FilterResult{Pairs: pairs, Stats: stats}, nil
}

// forEach calls fn for 0..n-1 with at most p.concurrency calls in flight.
// With a limit of 1 the calls run in index order.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

func groupByPost(comments []domain.Comment) map[string][]domain.Comment {
	byPost := make(map[string][]domain.Comment)
	for _, c := range comments {
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}
	return byPost
}
