package processor

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// BM25 ranking constants.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// BM25Search ranks paragraph chunks by BM25 relevance to the query and
// returns the top_k best, each prefixed with its score.
//
// Params: "pattern" with "search_mode" == "bm25"; option "top_k".
type BM25Search struct{}

// Name implements Processor.
func (BM25Search) Name() string { return "bm25_search" }

// Process implements Processor.
func (BM25Search) Process(content string, p Params) Result {
	if !p.Has("pattern") || p.Str("search_mode", "regex") != "bm25" {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	query := tokenize(p.Str("pattern", ""))
	if len(query) == 0 {
		return Result{Err: fmt.Errorf("bm25 query has no tokens")}
	}
	topK := p.Int("top_k", defaultTopK)
	if topK <= 0 {
		topK = defaultTopK
	}

	chunks := splitChunks(content)
	ranked := rankBM25(chunks, query, topK)

	if len(ranked) == 0 {
		return Result{
			Content:       "No matches found.",
			Metadata:      map[string]any{"matches": 0, "chunks": len(chunks)},
			OriginalSize:  len(content),
			ProcessedSize: len("No matches found."),
			Applied:       true,
		}
	}

	blocks := make([]string, len(ranked))
	for i, rc := range ranked {
		blocks[i] = fmt.Sprintf("[score=%.3f]\n%s", rc.score, rc.chunk)
	}
	out := strings.Join(blocks, "\n\n")

	return Result{
		Content:       out,
		Metadata:      map[string]any{"matches": len(ranked), "chunks": len(chunks)},
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
	}
}

type rankedChunk struct {
	chunk string
	score float64
	index int
}

// rankBM25 scores every chunk against the query terms with k1=1.5 b=0.75 and
// IDF = ln((N-df+0.5)/(df+0.5)+1), returning the topK positive scorers in
// descending order. Ties keep source order.
func rankBM25(chunks []string, query []string, topK int) []rankedChunk {
	if len(chunks) == 0 {
		return nil
	}

	tokens := make([][]string, len(chunks))
	totalLen := 0
	for i, c := range chunks {
		tokens[i] = tokenize(c)
		totalLen += len(tokens[i])
	}
	avgLen := float64(totalLen) / float64(len(chunks))
	if avgLen == 0 {
		return nil
	}

	df := make(map[string]int, len(query))
	for _, term := range query {
		if _, seen := df[term]; seen {
			continue
		}
		for _, toks := range tokens {
			for _, t := range toks {
				if t == term {
					df[term]++
					break
				}
			}
		}
	}

	n := float64(len(chunks))
	var ranked []rankedChunk
	for i, chunk := range chunks {
		freq := make(map[string]int, len(tokens[i]))
		for _, t := range tokens[i] {
			freq[t]++
		}
		docLen := float64(len(tokens[i]))

		score := 0.0
		for _, term := range query {
			tf := float64(freq[term])
			if tf == 0 || df[term] == 0 {
				continue
			}
			idf := math.Log((n-float64(df[term])+0.5)/(float64(df[term])+0.5) + 1.0)
			score += idf * (tf * (bm25K1 + 1)) /
				(tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}
		if score > 0 {
			ranked = append(ranked, rankedChunk{chunk: chunk, score: score, index: i})
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}
