// Package filter implements the two-stage relevance filter: posts first, then
// one batched comment call per relevant post.
package filter

import "report_worker/core/domain"

// ExtractPostText renders the text a classifier sees for a post. Values are
// embedded verbatim.
func ExtractPostText(p domain.Post) string {
	return "Title: " + p.Title + "\nBody: " + p.Body
}
