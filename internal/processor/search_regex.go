package processor

import (
	"fmt"
	"regexp"
	"strings"
)

// Default limits for the search processors.
const (
	defaultMaxResults     = 100
	defaultTopK           = 5
	defaultFuzzyThreshold = 0.7
)

// blockSeparator joins context blocks in regex output.
const blockSeparator = "--"

// RegexSearch emits line-oriented context blocks around regex matches.
//
// Params: "pattern" with "search_mode" absent or "regex"; options
// "case_insensitive", "multiline", "context_lines", "max_results".
type RegexSearch struct{}

// Name implements Processor.
func (RegexSearch) Name() string { return "regex_search" }

// Process implements Processor.
func (RegexSearch) Process(content string, p Params) Result {
	if !p.Has("pattern") || p.Str("search_mode", "regex") != "regex" {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	pattern := p.Str("pattern", "")
	re, err := compilePattern(pattern, p.Bool("case_insensitive", false))
	if err != nil {
		return Result{Err: err}
	}

	maxResults := p.Int("max_results", defaultMaxResults)
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	contextLines := p.Int("context_lines", 0)
	if contextLines < 0 {
		contextLines = 0
	}

	if p.Bool("multiline", false) {
		return matchWholeText(content, re, maxResults)
	}

	lines := strings.Split(content, "\n")

	// Collect matching line ranges, then merge overlaps into blocks.
	type span struct{ start, end int }
	var spans []span
	hits := 0
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		hits++
		spans = append(spans, span{
			start: max(0, i-contextLines),
			end:   min(len(lines)-1, i+contextLines),
		})
		if hits >= maxResults {
			break
		}
	}

	if len(spans) == 0 {
		return Result{
			Content:       "No matches found.",
			Metadata:      map[string]any{"matches": 0},
			OriginalSize:  len(content),
			ProcessedSize: len("No matches found."),
			Applied:       true,
		}
	}

	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end+1 {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	blocks := make([]string, len(merged))
	for i, s := range merged {
		blocks[i] = strings.Join(lines[s.start:s.end+1], "\n")
	}
	out := strings.Join(blocks, "\n"+blockSeparator+"\n")

	return Result{
		Content:       out,
		Metadata:      map[string]any{"matches": hits, "blocks": len(merged)},
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
	}
}

// matchWholeText handles multiline mode: the pattern runs against the full
// text and each match is emitted as its own block.
func matchWholeText(content string, re *regexp.Regexp, maxResults int) Result {
	found := re.FindAllString(content, maxResults)
	if len(found) == 0 {
		return Result{
			Content:       "No matches found.",
			Metadata:      map[string]any{"matches": 0},
			OriginalSize:  len(content),
			ProcessedSize: len("No matches found."),
			Applied:       true,
		}
	}
	out := strings.Join(found, "\n"+blockSeparator+"\n")
	return Result{
		Content:       out,
		Metadata:      map[string]any{"matches": len(found)},
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
	}
}

func compilePattern(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	expr := pattern
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}
