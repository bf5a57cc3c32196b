package papersift

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText performs Unicode normalization and trims whitespace.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.TrimSpace(normed)
	// Drop control characters except newlines and tabs.
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return normed
}

// NormalizeAll normalizes a slice of strings.
func NormalizeAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = NormalizeText(t)
	}
	return out
}

// CollapseWhitespace replaces every run of whitespace with a single space.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CombineTitleAbstract builds the text embedded for a paper.
// Either part may be empty; sep is only used when both are present.
func CombineTitleAbstract(title, abstract, sep string) string {
	title = CollapseWhitespace(NormalizeText(title))
	abstract = CollapseWhitespace(NormalizeText(abstract))
	switch {
	case title != "" && abstract != "":
		return title + sep + abstract
	case title != "":
		return title
	default:
		return abstract
	}
}
