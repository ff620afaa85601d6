package processor

import (
	"regexp"
	"strings"
)

var (
	tokenRe    = regexp.MustCompile(`\w+`)
	sentenceRe = regexp.MustCompile(`[.!?]+\s+`)
)

// tokenize lowercases text and extracts word tokens.
func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// splitChunks breaks text into paragraphs on blank lines. When the text has
// no paragraph structure it falls back to sentence splitting, and finally to
// the whole text as a single chunk.
func splitChunks(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) > 1 {
		return paragraphs
	}

	sentences := splitSentences(text)
	if len(sentences) > 1 {
		return sentences
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return []string{trimmed}
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// levenshtein computes the edit distance between two token slices' joined
// forms, operating on runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range ra {
		cur[0] = i + 1
		for j, cb := range rb {
			cost := 0
			if ca != cb {
				cost = 1
			}
			cur[j+1] = min(prev[j+1]+1, cur[j]+1, prev[j]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
