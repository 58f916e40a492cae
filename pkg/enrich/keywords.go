package enrich

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"with": true, "by": true, "from": true, "as": true, "that": true,
	"this": true, "these": true, "those": true, "it": true, "its": true,
	"he": true, "she": true, "they": true, "his": true, "her": true,
	"their": true, "has": true, "have": true, "had": true, "not": true,
	"no": true, "so": true, "if": true, "then": true, "than": true,
	"which": true, "who": true, "what": true, "when": true, "where": true,
	"will": true, "would": true, "can": true, "could": true, "also": true,
	"into": true, "over": true, "after": true, "before": true, "since": true,
}

// FrequencyKeywords returns the n most frequent non-stopword terms,
// ties broken alphabetically for stable output.
func FrequencyKeywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) < 3 || stopwords[word] {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}
