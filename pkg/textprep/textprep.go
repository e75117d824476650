// Package textprep normalizes article text ahead of engine entry and
// extracts the keywords carried alongside it. Scraping itself is an external
// collaborator; this package only prepares whatever text it produced.
package textprep

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
	wordPattern  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['-][\p{L}\p{N}]+)*`)
)

// lowerCaser folds words for keyword counting with proper unicode handling.
var lowerCaser = cases.Lower(language.Und)

// Clean normalizes extracted article text: control characters are dropped,
// runs of whitespace collapse to a single space and paragraph breaks are
// preserved as at most one blank line.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
			// drop
		default:
			b.WriteRune(r)
		}
	}

	text := b.String()
	text = multiSpace.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Keywords returns up to limit keywords of the text ordered by frequency,
// ties broken alphabetically. Stopwords and single-character tokens are
// ignored.
func Keywords(text string, limit int) []string {
	if limit <= 0 || text == "" {
		return []string{}
	}

	counts := make(map[string]int)
	for _, word := range wordPattern.FindAllString(text, -1) {
		folded := lowerCaser.String(word)
		if len([]rune(folded)) < 2 || stopwords[folded] {
			continue
		}
		counts[folded]++
	}

	keywords := make([]string, 0, len(counts))
	for w := range counts {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

// stopwords is the minimal English stopword set used for keyword counting.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"had": true, "has": true, "have": true, "he": true, "her": true,
	"his": true, "in": true, "is": true, "it": true, "its": true,
	"not": true, "of": true, "on": true, "or": true, "she": true,
	"that": true, "the": true, "their": true, "there": true, "they": true,
	"this": true, "to": true, "was": true, "were": true, "which": true,
	"will": true, "with": true, "would": true,
}
