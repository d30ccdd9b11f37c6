package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRender(t *testing.T) {
	r, err := FilterPost.Render(Params{"topic": "MBTA service", "post": "Title: Late trains\nBody: again"})
	require.NoError(t, err)

	assert.Equal(t, FilterSystem, r.System)
	assert.Contains(t, r.User, "Topic: MBTA service\n")
	assert.Contains(t, r.User, "Post: Title: Late trains\nBody: again\n")
	assert.Contains(t, r.User, "```json\n{\n    \"is_relevant\": true/false\n}\n```")
}

func TestTemplateRenderParamErrors(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		errMsg string
	}{
		{
			name:   "missing",
			params: Params{"topic": "t"},
			errMsg: "missing params [post]",
		},
		{
			name:   "unknown",
			params: Params{"topic": "t", "post": "p", "agency": "a"},
			errMsg: "unknown params [agency]",
		},
		{
			name:   "nil params",
			params: nil,
			errMsg: "missing params [post topic]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FilterPost.Render(tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestTemplateValuesAreNotEscaped(t *testing.T) {
	r, err := FilterComments.Render(Params{
		"topic":    "<b>parks</b> & rec",
		"post":     "Title: \nBody: ",
		"comments": "[\n  {\n    \"comment_id\": \"c1\",\n    \"body\": \"x\"\n  }\n]",
	})
	require.NoError(t, err)
	assert.Contains(t, r.User, "Topic: <b>parks</b> & rec")
	assert.Contains(t, r.User, "\"comment_id\": \"c1\"")
}

func TestTemplateEmptyValueIsAllowed(t *testing.T) {
	r, err := AgencyTopic.Render(Params{"agency": ""})
	require.NoError(t, err)
	assert.Contains(t, r.User, "description for  that covers")
}

func TestAllTemplatesDeclareTheirPlaceholders(t *testing.T) {
	for _, tmpl := range []*Template{FilterPost, FilterComments, SynthesizeReport, AgencyKeywords, AgencyTopic} {
		params := Params{}
		for _, name := range tmpl.Params {
			params[name] = "value"
		}
		_, err := tmpl.Render(params)
		assert.NoError(t, err, tmpl.Name)
	}
}
