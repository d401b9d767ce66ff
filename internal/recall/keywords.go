// Package recall implements the hybrid memory recall, ranking, and
// reinforcement engine: candidate retrieval across salience, lexical and
// vector channels, weighted scoring, diversity re-ranking, budgeted
// selection, trace recording, and reinforcement write-back.
package recall

import (
	"sort"
	"strings"
	"unicode"
)

const (
	maxScoringTerms = 12
	maxLexicalTerms = 8
	maxNGrams       = 24
	minNGram        = 2
	maxNGram        = 6
)

// ExtractKeywords tokenizes a query on letter/digit runs. Runs in scripts
// without whitespace word boundaries longer than 4 runes are additionally
// expanded into contiguous n-grams of length 2-6 (capped at 24 grams per
// run). The result is deduplicated, sorted by descending length, and capped
// at 12 terms.
func ExtractKeywords(query string) []string {
	var terms []string
	seen := map[string]bool{}
	add := func(t string) {
		t = strings.ToLower(t)
		if t != "" && !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}

	for _, run := range splitRuns(query) {
		add(run)
		runes := []rune(run)
		if !isUnsegmentedScript(runes) || len(runes) <= 4 {
			continue
		}
		grams := 0
		for n := minNGram; n <= maxNGram && grams < maxNGrams; n++ {
			for i := 0; i+n <= len(runes) && grams < maxNGrams; i++ {
				add(string(runes[i : i+n]))
				grams++
			}
		}
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return len([]rune(terms[i])) > len([]rune(terms[j]))
	})
	if len(terms) > maxScoringTerms {
		terms = terms[:maxScoringTerms]
	}
	return terms
}

// lexicalTerms returns the subset of keywords used to build the full-text
// match expression.
func lexicalTerms(keywords []string) []string {
	if len(keywords) > maxLexicalTerms {
		return keywords[:maxLexicalTerms]
	}
	return keywords
}

// splitRuns splits text into maximal letter/digit runs.
func splitRuns(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// isUnsegmentedScript reports whether a run is dominated by a script that
// does not separate words with whitespace (Han, kana, Thai).
func isUnsegmentedScript(runes []rune) bool {
	if len(runes) == 0 {
		return false
	}
	n := 0
	for _, r := range runes {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Thai, r) {
			n++
		}
	}
	return n*2 > len(runes)
}

// tokenSet builds the token set used for diversity comparison: letter/digit
// runs plus individual runes for unsegmented scripts.
func tokenSet(content string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, run := range splitRuns(content) {
		runes := []rune(run)
		if isUnsegmentedScript(runes) {
			for _, r := range runes {
				set[strings.ToLower(string(r))] = struct{}{}
			}
			continue
		}
		set[strings.ToLower(run)] = struct{}{}
	}
	return set
}

// jaccard computes token-set Jaccard similarity.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// keywordHits counts how many extracted keywords occur in the content.
func keywordHits(content string, keywords []string) int {
	lower := strings.ToLower(content)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}
