package report

import (
	"context"
	"fmt"
	"strings"

	"report_worker/core/agent/parse"
	"report_worker/core/agent/prompt"
	"report_worker/core/port/out"

	"github.com/rs/zerolog"
)

// MetadataGenerator asks the model for an agency's search keywords and topic.
// Unlike relevance calls, a missing structured result here is an error: a run
// cannot fetch or filter without them.
type MetadataGenerator struct {
	completer out.Completer
	parser    parse.ResultParser
	log       zerolog.Logger
}

func NewMetadataGenerator(completer out.Completer, parser parse.ResultParser, log zerolog.Logger) *MetadataGenerator {
	if parser == nil {
		parser = parse.NewFenceParser()
	}
	return &MetadataGenerator{
		completer: completer,
		parser:    parser,
		log:       log.With().Str("component", "agency_metadata").Logger(),
	}
}

// GenerateKeywords returns lowercased, de-duplicated keywords in response order.
func (g *MetadataGenerator) GenerateKeywords(ctx context.Context, agency string) ([]string, error) {
	r, err := prompt.AgencyKeywords.Render(prompt.Params{"agency": agency})
	if err != nil {
		return nil, err
	}
	text, err := g.completer.Complete(ctx, r.System, r.User)
	if err != nil {
		return nil, fmt.Errorf("generate keywords: %w", err)
	}

	raw, ok := parse.Decode[[]string](g.parser, text)
	if !ok {
		return nil, fmt.Errorf("generate keywords for %q: %w", agency, parse.ErrNoStructuredResult)
	}
	keywords := NormalizeKeywords(raw)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("generate keywords for %q: empty list: %w", agency, parse.ErrNoStructuredResult)
	}

	g.log.Info().Str("agency", agency).Int("keywords", len(keywords)).Msg("keywords generated")
	return keywords, nil
}

// GenerateTopic returns the one-line service description for an agency.
func (g *MetadataGenerator) GenerateTopic(ctx context.Context, agency string) (string, error) {
	r, err := prompt.AgencyTopic.Render(prompt.Params{"agency": agency})
	if err != nil {
		return "", err
	}
	text, err := g.completer.Complete(ctx, r.System, r.User)
	if err != nil {
		return "", fmt.Errorf("generate topic: %w", err)
	}

	v, ok := parse.Decode[struct {
		Topic string `json:"topic"`
	}](g.parser, text)
	topic := strings.TrimSpace(v.Topic)
	if !ok || topic == "" {
		return "", fmt.Errorf("generate topic for %q: %w", agency, parse.ErrNoStructuredResult)
	}

	g.log.Info().Str("agency", agency).Str("topic", topic).Msg("topic generated")
	return topic, nil
}

// NormalizeKeywords lowercases and trims keywords, dropping blanks and repeats.
func NormalizeKeywords(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
