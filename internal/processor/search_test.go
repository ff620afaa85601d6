package processor

import (
	"fmt"
	"strings"
	"testing"
)

func TestRegexSearchSkippedForOtherModes(t *testing.T) {
	r := RegexSearch{}.Process("text", Params{"pattern": "x", "search_mode": "bm25"})
	if r.Applied {
		t.Error("Applied = true for bm25 mode")
	}
	if r.Content != "text" {
		t.Errorf("content = %q, want passthrough", r.Content)
	}
}

func TestRegexSearchContextBlocks(t *testing.T) {
	// 1000 lines with ERROR on lines 10, 250, 800 (1-based).
	lines := make([]string, 1000)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d ok", i+1)
	}
	lines[9] = "line 10 ERROR one"
	lines[249] = "line 250 ERROR two"
	lines[799] = "line 800 ERROR three"
	content := strings.Join(lines, "\n")

	r := RegexSearch{}.Process(content, Params{
		"pattern":       "ERROR",
		"context_lines": 2,
		"max_results":   2,
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}

	blocks := strings.Split(r.Content, "\n"+blockSeparator+"\n")
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2:\n%s", len(blocks), r.Content)
	}

	// First block is lines 8-12, second 248-252.
	first := strings.Split(blocks[0], "\n")
	if len(first) != 5 || first[0] != "line 8 ok" || first[4] != "line 12 ok" {
		t.Errorf("first block wrong:\n%s", blocks[0])
	}
	second := strings.Split(blocks[1], "\n")
	if len(second) != 5 || second[0] != "line 248 ok" || second[4] != "line 252 ok" {
		t.Errorf("second block wrong:\n%s", blocks[1])
	}
	if strings.Contains(r.Content, "line 800") {
		t.Error("third match present despite max_results=2")
	}
}

func TestRegexSearchMergesOverlappingBlocks(t *testing.T) {
	content := "a\nERROR one\nb\nERROR two\nc"

	r := RegexSearch{}.Process(content, Params{"pattern": "ERROR", "context_lines": 2})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if strings.Contains(r.Content, blockSeparator) {
		t.Errorf("overlapping blocks not merged:\n%s", r.Content)
	}
	if r.Content != content {
		t.Errorf("merged block = %q, want whole text", r.Content)
	}
}

func TestRegexSearchCaseInsensitive(t *testing.T) {
	r := RegexSearch{}.Process("has error here", Params{
		"pattern":          "ERROR",
		"case_insensitive": true,
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if r.Content != "has error here" {
		t.Errorf("content = %q", r.Content)
	}
}

func TestRegexSearchNoMatches(t *testing.T) {
	r := RegexSearch{}.Process("nothing here", Params{"pattern": "ERROR"})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if !r.Applied || r.Content != "No matches found." {
		t.Errorf("content = %q, applied = %v", r.Content, r.Applied)
	}
}

func TestRegexSearchInvalidPattern(t *testing.T) {
	r := RegexSearch{}.Process("text", Params{"pattern": "("})
	if r.Err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestRegexSearchMultiline(t *testing.T) {
	content := "begin\nfoo\nbar\nend"
	r := RegexSearch{}.Process(content, Params{
		"pattern":   `foo\nbar`,
		"multiline": true,
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if r.Content != "foo\nbar" {
		t.Errorf("content = %q, want foo\\nbar", r.Content)
	}
}

func TestBM25RanksRelevance(t *testing.T) {
	p1 := "The database timeout occurred once during the nightly batch run."
	p2 := "Database errors: the database hit a timeout, then another timeout followed."
	p3 := "The weather in the mountains was clear and cold all week long."
	content := p1 + "\n\n" + p2 + "\n\n" + p3

	r := BM25Search{}.Process(content, Params{
		"pattern":     "database timeout",
		"search_mode": "bm25",
		"top_k":       2,
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if !r.Applied {
		t.Fatal("Applied = false")
	}

	iP2 := strings.Index(r.Content, "Database errors")
	iP1 := strings.Index(r.Content, "nightly batch")
	if iP2 < 0 || iP1 < 0 {
		t.Fatalf("expected both P1 and P2 in output:\n%s", r.Content)
	}
	if iP2 > iP1 {
		t.Errorf("P2 should rank above P1:\n%s", r.Content)
	}
	if strings.Contains(r.Content, "mountains") {
		t.Errorf("irrelevant paragraph included:\n%s", r.Content)
	}
	if !strings.Contains(r.Content, "[score=") {
		t.Errorf("missing score prefix:\n%s", r.Content)
	}
}

func TestBM25NoMatches(t *testing.T) {
	r := BM25Search{}.Process("alpha\n\nbeta", Params{
		"pattern":     "zzz",
		"search_mode": "bm25",
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if r.Content != "No matches found." {
		t.Errorf("content = %q", r.Content)
	}
}

func TestFuzzyFindsApproximateMatch(t *testing.T) {
	content := "The connecton timeout was exceeded.\n\nCompletely unrelated paragraph about cooking."

	r := FuzzySearch{}.Process(content, Params{
		"pattern":     "connection timeout",
		"search_mode": "fuzzy",
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if !strings.Contains(r.Content, "connecton timeout") {
		t.Errorf("approximate match missing:\n%s", r.Content)
	}
	if strings.Contains(r.Content, "cooking") {
		t.Errorf("unrelated paragraph included:\n%s", r.Content)
	}
	if !strings.Contains(r.Content, "[similarity=") {
		t.Errorf("missing similarity prefix:\n%s", r.Content)
	}
}

func TestFuzzyThresholdFiltersWeakMatches(t *testing.T) {
	content := "alpha beta gamma\n\ndelta epsilon zeta"

	r := FuzzySearch{}.Process(content, Params{
		"pattern":         "omega psi",
		"search_mode":     "fuzzy",
		"fuzzy_threshold": 0.9,
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if r.Content != "No matches found." {
		t.Errorf("content = %q, want no matches at 0.9 threshold", r.Content)
	}
}

func TestFuzzyRejectsBadThreshold(t *testing.T) {
	r := FuzzySearch{}.Process("text", Params{
		"pattern":         "x",
		"search_mode":     "fuzzy",
		"fuzzy_threshold": 1.5,
	})
	if r.Err == nil {
		t.Error("expected error for threshold outside [0,1]")
	}
}

func TestContextSearchReturnsEnclosingParagraph(t *testing.T) {
	p1 := "First paragraph.\nIt has an ERROR inside.\nAnd a third line."
	p2 := "Second paragraph, fully clean."
	content := p1 + "\n\n" + p2

	r := ContextSearch{}.Process(content, Params{
		"pattern":     "ERROR",
		"search_mode": "context",
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	if r.Content != p1 {
		t.Errorf("content = %q, want enclosing paragraph", r.Content)
	}
}

func TestContextSearchLineFallback(t *testing.T) {
	// Single paragraph: falls back to line windows.
	lines := []string{"one", "two", "target ERROR", "four", "five"}
	content := strings.Join(lines, "\n")

	r := ContextSearch{}.Process(content, Params{
		"pattern":       "ERROR",
		"search_mode":   "context",
		"context_lines": 1,
	})
	if r.Err != nil {
		t.Fatalf("Process failed: %v", r.Err)
	}
	want := "two\ntarget ERROR\nfour"
	if r.Content != want {
		t.Errorf("content = %q, want %q", r.Content, want)
	}
}
