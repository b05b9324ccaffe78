// Package markup is the single boundary between model markdown and the HTML
// stored in messages. Everything leaving Render has been sanitized.
package markup

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday"
)

var (
	htmlPolicy  = bluemonday.UGCPolicy()
	textPolicy  = bluemonday.StrictPolicy()
	blankLinesR = regexp.MustCompile(`\n{3,}`)
	blockCloseR = regexp.MustCompile(`(?i)</(p|h[1-6]|li|pre|blockquote|tr)>|<br\s*/?>`)
)

// Render converts markdown to sanitized HTML.
func Render(markdown string) string {
	unsafe := blackfriday.MarkdownCommon([]byte(markdown))
	return string(htmlPolicy.SanitizeBytes(unsafe))
}

// PlainText strips rendered HTML back to readable text for terminals and
// clipboard copies.
func PlainText(rendered string) string {
	withBreaks := blockCloseR.ReplaceAllStringFunc(rendered, func(tag string) string {
		return tag + "\n"
	})
	text := html.UnescapeString(textPolicy.Sanitize(withBreaks))
	text = blankLinesR.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
