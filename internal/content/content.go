// Package content renders user-authored text (note bodies and the gated page)
// into HTML that is safe to embed in a page.
package content

var (
	normalizeNewlines = NormalizeNewlines()
	plainTextToHTML   = PlainTextToHTML()
	markdownToHTML    = MarkdownToHTML()
	sanitizeHTML      = SanitizeHTML()

	plainPipeline    = Chain(normalizeNewlines, plainTextToHTML)
	markdownPipeline = Chain(normalizeNewlines, markdownToHTML, sanitizeHTML)
)

// Render converts text to HTML. Markdown input is rendered and sanitized;
// otherwise the text is escaped with its line breaks preserved.
func Render(markdown bool, text string) (string, error) {
	pipeline := plainPipeline
	if markdown {
		pipeline = markdownPipeline
	}
	out, err := pipeline([]byte(text))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
