package content

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// checkboxType matches the only input type task lists render.
var checkboxType = regexp.MustCompile(`^checkbox$`)

// SanitizeHTML applies sanitization rules to HTML input, stripping unsupported
// tags and attributes.
func SanitizeHTML() TransformerFunc {
	htmlSanitizer := sanitizer()
	return func(input []byte) ([]byte, error) {
		return htmlSanitizer.SanitizeBytes(input), nil
	}
}

// sanitizer is a narrowing of [bluemonday.UGCPolicy] for rendered Markdown.
// Differences:
//
//   - Target _blank and noreferrer for links
//   - No images, so notes cannot hot-link or beacon
//   - Disabled checkboxes for task lists
func sanitizer() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()

	policy.AllowStandardURLs()
	policy.RequireNoReferrerOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.AllowAttrs("href").OnElements("a")

	policy.AllowElements(
		"b",
		"blockquote",
		"br",
		"code",
		"del",
		"em",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"hr",
		"i",
		"p",
		"pre",
		"s",
		"strong",
		"sub",
		"sup",
	)

	policy.AllowAttrs("type").Matching(checkboxType).OnElements("input")
	policy.AllowAttrs("checked", "disabled").OnElements("input")

	policy.AllowLists()
	policy.AllowTables()

	return policy
}
