// Package prompt holds the completion prompts used by the pipeline as typed
// templates whose parameters are checked before rendering.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// Params are the named values substituted into a template.
type Params map[string]string

// Rendered is a template ready to send as a system and a user message.
type Rendered struct {
	System string
	User   string
}

// Template is a named prompt with a fixed set of declared parameters.
type Template struct {
	Name   string
	System string
	User   string
	Params []string

	tmpl *template.Template
}

// New parses the user prompt. It panics on a malformed template, so it is only
// used for package-level prompts.
func New(name, system, user string, params ...string) *Template {
	t := &Template{
		Name:   name,
		System: system,
		User:   user,
		Params: params,
	}
	t.tmpl = template.Must(template.New(name).Option("missingkey=error").Parse(user))
	return t
}

// Render checks that params supplies exactly the declared names, then renders.
func (t *Template) Render(params Params) (Rendered, error) {
	if err := t.check(params); err != nil {
		return Rendered{}, err
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, map[string]string(params)); err != nil {
		return Rendered{}, fmt.Errorf("render prompt %s: %w", t.Name, err)
	}
	return Rendered{System: t.System, User: b.String()}, nil
}

func (t *Template) check(params Params) error {
	declared := make(map[string]struct{}, len(t.Params))
	var missing []string
	for _, name := range t.Params {
		declared[name] = struct{}{}
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}

	var unknown []string
	for name := range params {
		if _, ok := declared[name]; !ok {
			unknown = append(unknown, name)
		}
	}

	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	return fmt.Errorf("prompt %s: missing params %v, unknown params %v", t.Name, missing, unknown)
}
