package web

import (
	"strings"
)

// isPDF detects PDF payloads by magic bytes.
func isPDF(raw string) bool {
	return strings.HasPrefix(raw, "%PDF-")
}

// extractPDFText pulls literal text strings out of a PDF byte stream.
// Only uncompressed string objects are recovered; compressed streams
// yield whatever plain literals surround them. Good enough for abstracts
// and title pages, which is all the pipeline needs from PDFs.
func extractPDFText(raw string) string {
	var out strings.Builder
	depth := 0
	escaped := false
	var current strings.Builder

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if depth == 0 {
			if c == '(' {
				depth = 1
				current.Reset()
			}
			continue
		}

		if escaped {
			switch c {
			case 'n', 'r', 't':
				current.WriteByte(' ')
			case '(', ')', '\\':
				current.WriteByte(c)
			}
			escaped = false
			continue
		}

		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
			current.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				if text := strings.TrimSpace(current.String()); isPrintable(text) {
					out.WriteString(text)
					out.WriteString(" ")
				}
			} else {
				current.WriteByte(c)
			}
		default:
			current.WriteByte(c)
		}
	}

	return strings.TrimSpace(out.String())
}

// isPrintable reports whether text looks like prose rather than binary
// garbage from a compressed stream.
func isPrintable(text string) bool {
	if text == "" {
		return false
	}
	printable := 0
	for _, r := range text {
		if r >= 0x20 && r != 0x7F {
			printable++
		}
	}
	return printable*10 >= len([]rune(text))*9
}
