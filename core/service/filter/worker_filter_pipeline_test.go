package filter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"report_worker/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario: A and C are relevant, c1 is relevant, c2 is not.
func scenario() ([]domain.Post, []domain.Comment) {
	posts := []domain.Post{
		{ID: "A", Title: "post-A", Body: "about the MBTA"},
		{ID: "B", Title: "post-B", Body: "about pizza"},
		{ID: "C", Title: "post-C", Body: "about the Red Line"},
	}
	comments := []domain.Comment{
		{ID: "c1", PostID: "A", Body: "trains late"},
		{ID: "c2", PostID: "A", Body: "nice weather"},
		{ID: "c3", PostID: "B", Body: "pepperoni"},
	}
	return posts, comments
}

func scenarioResponder(system, user string) (string, error) {
	switch {
	case strings.Contains(user, postPromptMarker):
		relevant := strings.Contains(user, "Title: post-A") || strings.Contains(user, "Title: post-C")
		if relevant {
			return fenced(`{"is_relevant": true}`), nil
		}
		return fenced(`{"is_relevant": false}`), nil
	case strings.Contains(user, commentPromptMarker):
		return fenced(`[{"comment_id":"c2","is_relevant":false},{"comment_id":"c1","is_relevant":true}]`), nil
	}
	return "", errors.New("unexpected prompt")
}

func newPipeline(fc *fakeCompleter, concurrency int) *Pipeline {
	return NewPipeline(NewClassifier(fc, nil, zerolog.Nop()), Config{Concurrency: concurrency}, zerolog.Nop())
}

func pairIDs(pairs []domain.FilteredPair) map[string][]string {
	out := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		ids := []string{}
		for _, c := range p.RelevantComments {
			ids = append(ids, c.ID)
		}
		out[p.Post.ID] = ids
	}
	return out
}

func TestPipelineEndToEnd(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		fc := &fakeCompleter{respond: scenarioResponder}
		posts, comments := scenario()

		res, err := newPipeline(fc, concurrency).Run(context.Background(), posts, comments, "MBTA transit service")
		require.NoError(t, err)

		require.Len(t, res.Pairs, 2)
		assert.Equal(t, "A", res.Pairs[0].Post.ID)
		assert.Equal(t, "C", res.Pairs[1].Post.ID)
		assert.Equal(t, map[string][]string{"A": {"c1"}, "C": {}}, pairIDs(res.Pairs))
		assert.NotNil(t, res.Pairs[1].RelevantComments)

		assert.Len(t, fc.callsContaining(postPromptMarker), 3)
		commentCalls := fc.callsContaining(commentPromptMarker)
		require.Len(t, commentCalls, 1, "C has no comments and B is not relevant")
		assert.Contains(t, commentCalls[0], `"comment_id": "c1"`)
		assert.Contains(t, commentCalls[0], `"comment_id": "c2"`)
		assert.NotContains(t, commentCalls[0], "c3")
		assert.Empty(t, fc.callsContaining("pepperoni"))

		assert.Equal(t, domain.FilterStats{
			PostsIn:            3,
			PostsRelevant:      2,
			CommentsIn:         3,
			CommentsClassified: 2,
			CommentsRelevant:   1,
			CommentBatches:     1,
		}, res.Stats)
	}
}

func TestPipelineKeepsOrderAndOwnership(t *testing.T) {
	posts := []domain.Post{
		{ID: "p1", Title: "keep"}, {ID: "p2", Title: "drop"}, {ID: "p3", Title: "keep"},
		{ID: "p4", Title: "keep"}, {ID: "p5", Title: "drop"},
	}
	comments := []domain.Comment{
		{ID: "k3", PostID: "p4", Body: "yes"},
		{ID: "k1", PostID: "p1", Body: "yes"},
		{ID: "k2", PostID: "p1", Body: "no"},
		{ID: "k4", PostID: "p1", Body: "yes"},
		{ID: "k5", PostID: "p3", Body: "yes"},
		{ID: "orphan", PostID: "missing", Body: "yes"},
	}
	fc := &fakeCompleter{respond: func(_, user string) (string, error) {
		if strings.Contains(user, postPromptMarker) {
			if strings.Contains(user, "Title: keep") {
				return fenced(`{"is_relevant": true}`), nil
			}
			return fenced(`{"is_relevant": false}`), nil
		}
		// answer in reverse order, every "yes" comment relevant
		var entries []string
		for _, id := range []string{"k5", "k4", "k3", "k2", "k1"} {
			if strings.Contains(user, `"comment_id": "`+id+`"`) {
				relevant := "true"
				if id == "k2" {
					relevant = "false"
				}
				entries = append(entries, `{"comment_id":"`+id+`","is_relevant":`+relevant+`}`)
			}
		}
		return fenced("[" + strings.Join(entries, ",") + "]"), nil
	}}

	for _, concurrency := range []int{1, 3} {
		res, err := newPipeline(fc, concurrency).Run(context.Background(), posts, comments, "topic")
		require.NoError(t, err)

		var ids []string
		for _, p := range res.Pairs {
			ids = append(ids, p.Post.ID)
			for _, c := range p.RelevantComments {
				assert.Equal(t, p.Post.ID, c.PostID)
			}
		}
		assert.Equal(t, []string{"p1", "p3", "p4"}, ids)
		assert.Equal(t, map[string][]string{"p1": {"k1", "k4"}, "p3": {"k5"}, "p4": {"k3"}}, pairIDs(res.Pairs))
	}
}

func TestPipelineIdempotent(t *testing.T) {
	posts, comments := scenario()
	p := newPipeline(&fakeCompleter{respond: scenarioResponder}, 2)

	first, err := p.Run(context.Background(), posts, comments, "topic")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), posts, comments, "topic")
	require.NoError(t, err)

	assert.Equal(t, first.Pairs, second.Pairs)
}

func TestPipelineNoCommentCallForCommentFreePosts(t *testing.T) {
	fc := &fakeCompleter{respond: func(string, string) (string, error) {
		return fenced(`{"is_relevant": true}`), nil
	}}
	posts := []domain.Post{{ID: "a"}, {ID: "b"}}

	res, err := newPipeline(fc, 2).Run(context.Background(), posts, nil, "topic")
	require.NoError(t, err)
	require.Len(t, res.Pairs, 2)
	assert.Equal(t, 0, res.Stats.CommentBatches)
	assert.Empty(t, fc.callsContaining(commentPromptMarker))
	assert.Len(t, fc.calls, 2)
}

func TestPipelineEmptyInputs(t *testing.T) {
	fc := &fakeCompleter{respond: scenarioResponder}

	res, err := newPipeline(fc, 1).Run(context.Background(), nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)
	assert.NotNil(t, res.Pairs)
	assert.Empty(t, fc.calls)
}

func TestPipelineEmptyPostAndTopicAreClassified(t *testing.T) {
	var gotUser string
	fc := &fakeCompleter{respond: func(_, user string) (string, error) {
		gotUser = user
		return fenced(`{"is_relevant": true}`), nil
	}}

	res, err := newPipeline(fc, 1).Run(context.Background(), []domain.Post{{ID: "blank"}}, nil, "")
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.Contains(t, gotUser, "Topic: \nPost: Title: \nBody: \n")
}

func TestPipelineMalformedResponsesMeanNotRelevant(t *testing.T) {
	fc := &fakeCompleter{respond: func(_, _ string) (string, error) { return "sure, it's relevant", nil }}
	posts, comments := scenario()

	res, err := newPipeline(fc, 1).Run(context.Background(), posts, comments, "topic")
	require.NoError(t, err)
	assert.Empty(t, res.Pairs)
	assert.Equal(t, 0, res.Stats.Failures())
}

func TestPipelinePostTransportErrorSkipsOnlyThatPost(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) {
		if strings.Contains(user, "Title: post-A") && strings.Contains(user, postPromptMarker) {
			return "", errors.New("502 bad gateway")
		}
		return scenarioResponder(system, user)
	}}
	posts, comments := scenario()

	res, err := newPipeline(fc, 1).Run(context.Background(), posts, comments, "topic")
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.Equal(t, "C", res.Pairs[0].Post.ID)
	assert.Equal(t, 1, res.Stats.PostFailures)
	assert.Empty(t, fc.callsContaining(commentPromptMarker))
}

func TestPipelineCommentTransportErrorKeepsPost(t *testing.T) {
	fc := &fakeCompleter{respond: func(system, user string) (string, error) {
		if strings.Contains(user, commentPromptMarker) {
			return "", errors.New("timeout")
		}
		return scenarioResponder(system, user)
	}}
	posts, comments := scenario()

	res, err := newPipeline(fc, 1).Run(context.Background(), posts, comments, "topic")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"A": {}, "C": {}}, pairIDs(res.Pairs))
	assert.Equal(t, 1, res.Stats.CommentBatchFailures)
	assert.Equal(t, 1, res.Stats.CommentBatches)
	assert.Equal(t, 0, res.Stats.CommentsClassified)
}

func TestPipelineCancelledContext(t *testing.T) {
	fc := &fakeCompleter{respond: scenarioResponder}
	posts, comments := scenario()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(fc, 1).Run(ctx, posts, comments, "topic")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fc.calls)
}
