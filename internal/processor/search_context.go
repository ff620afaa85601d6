package processor

import (
	"strings"
)

// ContextSearch returns the paragraphs enclosing pattern matches. When the
// text has no paragraph structure it falls back to context_lines lines around
// each matching line.
//
// Params: "pattern" with "search_mode" == "context"; options
// "case_insensitive", "context_lines", "max_results".
type ContextSearch struct{}

// Name implements Processor.
func (ContextSearch) Name() string { return "context_search" }

// Process implements Processor.
func (ContextSearch) Process(content string, p Params) Result {
	if !p.Has("pattern") || p.Str("search_mode", "regex") != "context" {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	re, err := compilePattern(p.Str("pattern", ""), p.Bool("case_insensitive", false))
	if err != nil {
		return Result{Err: err}
	}
	maxResults := p.Int("max_results", defaultMaxResults)
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	paragraphs := splitParagraphs(content)
	if len(paragraphs) > 1 {
		var blocks []string
		for _, para := range paragraphs {
			if re.MatchString(para) {
				blocks = append(blocks, para)
				if len(blocks) >= maxResults {
					break
				}
			}
		}
		return contextResult(content, blocks, len(paragraphs))
	}

	// No paragraph structure: line-window fallback, same shape as regex mode.
	fallback := Params{
		"pattern":       p.Str("pattern", ""),
		"search_mode":   "regex",
		"context_lines": p.Int("context_lines", 2),
		"max_results":   maxResults,
	}
	if p.Bool("case_insensitive", false) {
		fallback["case_insensitive"] = true
	}
	r := RegexSearch{}.Process(content, fallback)
	r.Applied = r.Err == nil
	return r
}

func contextResult(content string, blocks []string, total int) Result {
	if len(blocks) == 0 {
		return Result{
			Content:       "No matches found.",
			Metadata:      map[string]any{"matches": 0, "paragraphs": total},
			OriginalSize:  len(content),
			ProcessedSize: len("No matches found."),
			Applied:       true,
		}
	}
	out := strings.Join(blocks, "\n\n")
	return Result{
		Content:       out,
		Metadata:      map[string]any{"matches": len(blocks), "paragraphs": total},
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
	}
}
