// Package web fetches pages and turns raw page content into compact text
// blocks suitable as LLM context.
package web

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hermes/internal/agent/ports"
)

const (
	maxParagraphs   = 3
	maxContentChars = 2000
)

var _ ports.ContentNormalizer = (*Normalizer)(nil)

// Normalizer is the in-process content normalizer. It strips markup,
// collapses whitespace, and truncates each block to a few paragraphs.
type Normalizer struct{}

// NewNormalizer returns the in-process normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize cleans each raw block independently. Blocks that cannot be
// parsed degrade to whitespace-collapsed plain text.
func (n *Normalizer) Normalize(_ context.Context, raw []string) ([]string, error) {
	out := make([]string, len(raw))
	for i, block := range raw {
		out[i] = NormalizeBlock(block)
	}
	return out, nil
}

// NormalizeBlock cleans one block of page content.
func NormalizeBlock(raw string) string {
	if isPDF(raw) {
		return truncateBlock(extractPDFText(raw))
	}
	text, err := htmlToText(raw)
	if err != nil {
		text = raw
	}
	return truncateBlock(text)
}

// htmlToText strips noise elements and converts block structure to
// newline-separated paragraphs.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header, aside, iframe").Remove()

	var content strings.Builder

	doc.Find("h1, h2, h3, h4, h5, h6, p, li, article, section, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		// Only leaf-ish nodes; containers repeat their children's text.
		if s.Children().Filter("p, li, article, section, h1, h2, h3").Length() > 0 {
			return
		}
		if text := collapseWhitespace(s.Text()); text != "" {
			content.WriteString(text)
			content.WriteString("\n\n")
		}
	})

	result := strings.TrimSpace(content.String())
	if result == "" {
		// Markup without recognized blocks still has readable text.
		result = collapseWhitespace(doc.Text())
	}
	return result, nil
}

// collapseWhitespace folds runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateBlock keeps at most maxParagraphs paragraphs and
// maxContentChars characters.
func truncateBlock(text string) string {
	text = strings.TrimSpace(text)
	paragraphs := strings.Split(text, "\n\n")
	if len(paragraphs) > maxParagraphs {
		paragraphs = paragraphs[:maxParagraphs]
	}
	text = strings.Join(paragraphs, "\n\n")
	if len(text) > maxContentChars {
		cut := maxContentChars
		// Back up to a rune boundary.
		for cut > 0 && text[cut]&0xC0 == 0x80 {
			cut--
		}
		text = text[:cut]
	}
	return text
}
