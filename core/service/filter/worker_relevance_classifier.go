package filter

import (
	"context"
	"fmt"

	"report_worker/core/agent/parse"
	"report_worker/core/agent/prompt"
	"report_worker/core/domain"
	"report_worker/core/port/out"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// CommentInput is the only comment data a classifier prompt carries.
type CommentInput struct {
	CommentID string `json:"comment_id"`
	Body      string `json:"body"`
}

type postVerdict struct {
	IsRelevant bool `json:"is_relevant"`
}

type commentVerdict struct {
	CommentID  string `json:"comment_id"`
	IsRelevant bool   `json:"is_relevant"`
}

// Classifier judges topical relevance with one completion call per invocation.
type Classifier struct {
	completer out.Completer
	parser    parse.ResultParser
	log       zerolog.Logger
}

// NewClassifier uses the fenced-block parser when parser is nil.
func NewClassifier(completer out.Completer, parser parse.ResultParser, log zerolog.Logger) *Classifier {
	if parser == nil {
		parser = parse.NewFenceParser()
	}
	return &Classifier{
		completer: completer,
		parser:    parser,
		log:       log.With().Str("component", "classifier").Logger(),
	}
}

// ClassifyPost returns the verdict for one post. ok is false when the
// completion had no structured result; callers treat that as not relevant.
// err is non-nil only for transport failures.
func (c *Classifier) ClassifyPost(ctx context.Context, postText, topic string) (relevant bool, ok bool, err error) {
	r, err := prompt.FilterPost.Render(prompt.Params{"topic": topic, "post": postText})
	if err != nil {
		return false, false, err
	}

	text, err := c.completer.Complete(ctx, r.System, r.User)
	if err != nil {
		return false, false, fmt.Errorf("classify post: %w", err)
	}

	v, ok := parse.Decode[postVerdict](c.parser, text)
	if !ok {
		c.log.Debug().Msg("post verdict had no structured result")
		return false, false, nil
	}
	return v.IsRelevant, true, nil
}

// ClassifyComments judges a post's comments in a single call and returns the
// relevant ids. Ids missing from the response are absent from the map; an
// unparseable response yields an empty map.
func (c *Classifier) ClassifyComments(ctx context.Context, postText, topic string, comments []CommentInput) (map[string]bool, error) {
	if comments == nil {
		comments = []CommentInput{}
	}
	payload, err := json.MarshalIndent(comments, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode comments: %w", err)
	}

	r, err := prompt.FilterComments.Render(prompt.Params{
		"topic":    topic,
		"post":     postText,
		"comments": string(payload),
	})
	if err != nil {
		return nil, err
	}

	text, err := c.completer.Complete(ctx, r.System, r.User)
	if err != nil {
		return nil, fmt.Errorf("classify comments: %w", err)
	}

	verdicts, ok := parse.Decode[[]commentVerdict](c.parser, text)
	if !ok {
		c.log.Debug().Int("comments", len(comments)).Msg("comment verdicts had no structured result")
		return map[string]bool{}, nil
	}

	// later entries for the same id win
	relevant := make(map[string]bool, len(verdicts))
	for _, v := range verdicts {
		relevant[v.CommentID] = v.IsRelevant
	}
	if e := c.log.Debug(); e.Enabled() {
		judgments := make([]domain.RelevanceJudgment, 0, len(verdicts))
		for _, v := range verdicts {
			judgments = append(judgments, domain.RelevanceJudgment{SubjectID: v.CommentID, IsRelevant: v.IsRelevant})
		}
		e.Interface("judgments", judgments).Msg("comment verdicts")
	}
	return relevant, nil
}
