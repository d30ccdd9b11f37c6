// Package parse extracts structured results from free-form LLM output.
package parse

import (
	"errors"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNoStructuredResult marks output that carried no usable structured block.
// Callers that cannot proceed without a result wrap it; classifiers never see it.
var ErrNoStructuredResult = errors.New("no structured result in completion")

// ResultParser pulls the structured payload out of completion text. ok is false
// when there is no payload; an empty but valid payload ("[]", "{}") is ok.
type ResultParser interface {
	Extract(text string) (payload json.RawMessage, ok bool)
}

// fenceRe matches the first ```json fenced block. The language tag is required,
// whitespace around the payload is not significant.
var fenceRe = regexp.MustCompile("(?s)```(?i:json)[ \\t]*\\r?\\n?(.*?)```")

// FenceParser reads the first ```json fenced block of a completion.
type FenceParser struct{}

// NewFenceParser returns the default parser.
func NewFenceParser() FenceParser {
	return FenceParser{}
}

// Extract implements ResultParser.
func (FenceParser) Extract(text string) (json.RawMessage, bool) {
	m := fenceRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	payload := []byte(strings.TrimSpace(m[1]))
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, false
	}
	return json.RawMessage(payload), true
}

// Decode extracts and unmarshals the payload into T. ok is false when there is
// no payload or it does not fit T.
func Decode[T any](p ResultParser, text string) (T, bool) {
	var v T
	payload, ok := p.Extract(text)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}
