package content

import (
	"bytes"
	"html"
	"regexp"
)

// blankLines separates paragraphs in plain text.
var blankLines = regexp.MustCompile(`\n[ \t]*\n+`)

// NormalizeNewlines converts Windows and classic Mac line endings to Unix and
// trims surrounding whitespace. Browsers submit textarea values with CRLF.
func NormalizeNewlines() TransformerFunc {
	return func(input []byte) ([]byte, error) {
		input = bytes.ReplaceAll(input, []byte("\r\n"), []byte("\n"))
		input = bytes.ReplaceAll(input, []byte("\r"), []byte("\n"))
		return bytes.TrimSpace(input), nil
	}
}

// PlainTextToHTML escapes plain text and wraps it in paragraphs. Blank lines
// start a new paragraph and single line breaks become <br>.
func PlainTextToHTML() TransformerFunc {
	return func(input []byte) ([]byte, error) {
		if len(input) == 0 {
			return nil, nil
		}
		out := &bytes.Buffer{}
		for i, para := range blankLines.Split(string(input), -1) {
			if i > 0 {
				out.WriteByte('\n')
			}
			out.WriteString("<p>")
			for j, line := range bytes.Split([]byte(para), []byte("\n")) {
				if j > 0 {
					out.WriteString("<br>\n")
				}
				out.WriteString(html.EscapeString(string(line)))
			}
			out.WriteString("</p>")
		}
		return out.Bytes(), nil
	}
}
