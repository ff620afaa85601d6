package processor

import (
	"fmt"
	"sort"
	"strings"
)

// FuzzySearch keeps chunks approximately matching the pattern. For each
// chunk it slides a window of the pattern's token length and scores the best
// window by normalized Levenshtein similarity.
//
// Params: "pattern" with "search_mode" == "fuzzy"; options "fuzzy_threshold"
// (default 0.7), "max_results".
type FuzzySearch struct{}

// Name implements Processor.
func (FuzzySearch) Name() string { return "fuzzy_search" }

// Process implements Processor.
func (FuzzySearch) Process(content string, p Params) Result {
	if !p.Has("pattern") || p.Str("search_mode", "regex") != "fuzzy" {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	pattern := strings.ToLower(strings.TrimSpace(p.Str("pattern", "")))
	if pattern == "" {
		return Result{Err: fmt.Errorf("fuzzy pattern is empty")}
	}
	threshold := p.Float("fuzzy_threshold", defaultFuzzyThreshold)
	if threshold < 0 || threshold > 1 {
		return Result{Err: fmt.Errorf("fuzzy_threshold %v outside [0,1]", threshold)}
	}
	maxResults := p.Int("max_results", defaultMaxResults)
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	chunks := splitChunks(content)
	type scored struct {
		chunk string
		score float64
	}
	var kept []scored
	for _, chunk := range chunks {
		score := bestWindowSimilarity(chunk, pattern)
		if score >= threshold {
			kept = append(kept, scored{chunk: chunk, score: score})
		}
	}

	sort.SliceStable(kept, func(a, b int) bool { return kept[a].score > kept[b].score })
	if len(kept) > maxResults {
		kept = kept[:maxResults]
	}

	if len(kept) == 0 {
		return Result{
			Content:       "No matches found.",
			Metadata:      map[string]any{"matches": 0, "chunks": len(chunks)},
			OriginalSize:  len(content),
			ProcessedSize: len("No matches found."),
			Applied:       true,
		}
	}

	blocks := make([]string, len(kept))
	for i, s := range kept {
		blocks[i] = fmt.Sprintf("[similarity=%.3f]\n%s", s.score, s.chunk)
	}
	out := strings.Join(blocks, "\n\n")

	return Result{
		Content:       out,
		Metadata:      map[string]any{"matches": len(kept), "chunks": len(chunks)},
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
	}
}

// bestWindowSimilarity slides a window of the pattern's token count over the
// chunk's tokens and returns the highest 1 - dist/maxLen similarity.
func bestWindowSimilarity(chunk, pattern string) float64 {
	patTokens := tokenize(pattern)
	if len(patTokens) == 0 {
		return 0
	}
	chunkTokens := tokenize(chunk)
	if len(chunkTokens) == 0 {
		return 0
	}

	window := len(patTokens)
	if window > len(chunkTokens) {
		window = len(chunkTokens)
	}
	pat := strings.Join(patTokens, " ")

	best := 0.0
	for i := 0; i+window <= len(chunkTokens); i++ {
		candidate := strings.Join(chunkTokens[i:i+window], " ")
		sim := similarity(pat, candidate)
		if sim > best {
			best = sim
		}
	}
	return best
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}
