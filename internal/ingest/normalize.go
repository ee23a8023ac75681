package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// summaryLength is the maximum stored summary size in characters.
const summaryLength = 500

// stripHTML extracts plain text from markup. Feed bodies arrive as anything
// from clean text to full HTML documents; non-HTML input passes through with
// only whitespace normalization.
func stripHTML(raw string) string {
	if !strings.ContainsAny(raw, "<>") {
		return squeezeWhitespace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return squeezeWhitespace(raw)
	}
	doc.Find("script, style").Remove()
	return squeezeWhitespace(doc.Text())
}

// squeezeWhitespace collapses runs of whitespace into single spaces and trims
// the result.
func squeezeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// summarize derives a stored summary from the normalized content, cutting at
// the character budget on a rune boundary.
func summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= summaryLength {
		return content
	}
	return strings.TrimSpace(string(runes[:summaryLength])) + "..."
}
