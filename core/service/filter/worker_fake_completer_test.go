package filter

import (
	"context"
	"strings"
	"sync"
)

// fakeCompleter answers from prompt content and records every call.
type fakeCompleter struct {
	mu      sync.Mutex
	calls   []string
	respond func(system, user string) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, user)
	f.mu.Unlock()
	return f.respond(system, user)
}

func (f *fakeCompleter) callsContaining(s string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.Contains(c, s) {
			out = append(out, c)
		}
	}
	return out
}

const (
	postPromptMarker    = "Analyze this Reddit post"
	commentPromptMarker = "Analyze these comments"
)

func fenced(payload string) string {
	return "Here you go:\n```json\n" + payload + "\n```\n"
}
