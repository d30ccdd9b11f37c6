// Package report turns filtered feedback into an agency report and derives the
// per-agency search metadata a run needs.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"report_worker/core/agent/prompt"
	"report_worker/core/domain"
	"report_worker/core/port/out"

	"github.com/rs/zerolog"
)

var separator = strings.Repeat("=", 50)

// BuildCorpus renders the pairs as the feedback document embedded in the
// report prompt. An empty input renders as an empty string.
func BuildCorpus(pairs []domain.FilteredPair) string {
	blocks := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		var b strings.Builder
		b.WriteString("**POST:**\nTitle: ")
		b.WriteString(pair.Post.Title)
		b.WriteString("\nBody: ")
		b.WriteString(pair.Post.Body)
		b.WriteString("\n")

		if len(pair.RelevantComments) > 0 {
			b.WriteString("\n**COMMENTS:**\n")
			for _, c := range pair.RelevantComments {
				b.WriteString("- ")
				b.WriteString(c.Body)
				b.WriteString("\n")
			}
		}

		b.WriteString("\n")
		b.WriteString(separator)
		b.WriteString("\n")
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// Synthesizer issues the single report completion for a run.
type Synthesizer struct {
	completer out.Completer
	log       zerolog.Logger
	now       func() time.Time
}

func NewSynthesizer(completer out.Completer, log zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		completer: completer,
		log:       log.With().Str("component", "synthesizer").Logger(),
		now:       time.Now,
	}
}

// Synthesize always makes exactly one completion call, also for an empty pair
// list, and returns the completion text unvalidated.
func (s *Synthesizer) Synthesize(ctx context.Context, pairs []domain.FilteredPair, agency, topic string) (*domain.Report, error) {
	corpus := BuildCorpus(pairs)
	r, err := prompt.SynthesizeReport.Render(prompt.Params{
		"agency": agency,
		"topic":  topic,
		"corpus": corpus,
	})
	if err != nil {
		return nil, err
	}

	start := s.now()
	body, err := s.completer.Complete(ctx, r.System, r.User)
	if err != nil {
		return nil, fmt.Errorf("synthesize report: %w", err)
	}

	s.log.Info().
		Str("agency", agency).
		Int("pairs", len(pairs)).
		Int("corpus_bytes", len(corpus)).
		Int("report_bytes", len(body)).
		Dur("took", s.now().Sub(start)).
		Msg("report generated")

	return &domain.Report{
		Agency:      agency,
		Topic:       topic,
		Body:        body,
		GeneratedAt: s.now(),
	}, nil
}
