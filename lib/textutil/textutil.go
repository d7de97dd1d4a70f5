package textutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	urlRegex        = regexp.MustCompile(`https?://\S+`)
	whitespaceRegex = regexp.MustCompile(`[ \t\r\n]+`)
)

// Sanitize turns storefront rich text into a single plain line: embedded
// links are removed, markup is reduced to its text content, quote entities
// are unescaped and runs of whitespace collapse into single spaces.
// Sanitizing already-sanitized text is a no-op.
func Sanitize(text string) string {
	text = urlRegex.ReplaceAllString(text, "")
	text = StripTags(text)
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimLeft(text, " ")
}

// StripTags extracts the text content of an HTML fragment. The parser
// unescapes entities as it goes, which can surface a fresh layer of markup
// (e.g. "&lt;b&gt;" becoming "<b>"), so extraction repeats until the text
// stops changing. Input without angle brackets never goes through the
// parser, so plain text comes back byte for byte.
func StripTags(text string) string {
	for strings.ContainsAny(text, "<>") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err != nil {
			return text
		}
		next := doc.Text()
		if next == text {
			return text
		}
		text = next
	}
	return text
}
