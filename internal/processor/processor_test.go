package processor

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type staticProc struct {
	name    string
	out     string
	applied bool
	err     error
}

func (s staticProc) Name() string { return s.name }

func (s staticProc) Process(content string, _ Params) Result {
	if s.err != nil {
		return Result{Err: s.err}
	}
	if !s.applied {
		return Result{Content: content}
	}
	return Result{Content: s.out, Applied: true, OriginalSize: len(content), ProcessedSize: len(s.out)}
}

var _ Processor = staticProc{}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestPipelineChainsContent(t *testing.T) {
	pl := NewPipeline(testLogger(),
		staticProc{name: "first", out: "step1", applied: true},
		staticProc{name: "second", out: "step2", applied: true},
	)

	r := pl.Run("input", Params{})
	if r.Content != "step2" {
		t.Errorf("content = %q, want step2", r.Content)
	}
	if !r.Applied {
		t.Error("Applied = false, want true")
	}
	if r.OriginalSize != len("input") || r.ProcessedSize != len("step2") {
		t.Errorf("sizes = %d/%d, want %d/%d", r.OriginalSize, r.ProcessedSize, len("input"), len("step2"))
	}
	applied, ok := r.Metadata["applied"].([]string)
	if !ok || len(applied) != 2 || applied[0] != "first" || applied[1] != "second" {
		t.Errorf("applied = %v, want [first second]", r.Metadata["applied"])
	}
}

func TestPipelineSkipsUnapplied(t *testing.T) {
	pl := NewPipeline(testLogger(),
		staticProc{name: "skipped"},
		staticProc{name: "ran", out: "done", applied: true},
	)

	r := pl.Run("input", Params{})
	if r.Content != "done" {
		t.Errorf("content = %q, want done", r.Content)
	}
	applied := r.Metadata["applied"].([]string)
	if len(applied) != 1 || applied[0] != "ran" {
		t.Errorf("applied = %v, want [ran]", applied)
	}
}

func TestPipelineAbsorbsErrors(t *testing.T) {
	pl := NewPipeline(testLogger(),
		staticProc{name: "broken", err: errors.New("boom")},
		staticProc{name: "after", out: "survived", applied: true},
	)

	r := pl.Run("input", Params{})
	if r.Content != "survived" {
		t.Errorf("content = %q, want survived (pipeline must continue past errors)", r.Content)
	}
	errsMeta, ok := r.Metadata["errors"].([]string)
	if !ok || len(errsMeta) != 1 || !strings.Contains(errsMeta[0], "boom") {
		t.Errorf("errors metadata = %v, want one entry containing boom", r.Metadata["errors"])
	}
}

func TestPipelineNoProcessorsApplied(t *testing.T) {
	pl := NewPipeline(testLogger(), staticProc{name: "skipped"})

	r := pl.Run("unchanged", Params{})
	if r.Content != "unchanged" || r.Applied {
		t.Errorf("result = (%q, applied=%v), want unchanged passthrough", r.Content, r.Applied)
	}
}

func TestParamsAccessors(t *testing.T) {
	p := Params{
		"s":       "text",
		"slice":   []any{"a", "b"},
		"jsonNum": float64(7),
		"goNum":   3,
		"f":       0.5,
		"b":       true,
	}

	if got := p.Str("s", "x"); got != "text" {
		t.Errorf("Str = %q", got)
	}
	if got := p.Str("missing", "x"); got != "x" {
		t.Errorf("Str default = %q", got)
	}
	if got := p.StrSlice("slice"); len(got) != 2 || got[1] != "b" {
		t.Errorf("StrSlice = %v", got)
	}
	if got := p.Int("jsonNum", 0); got != 7 {
		t.Errorf("Int(float64) = %d", got)
	}
	if got := p.Int("goNum", 0); got != 3 {
		t.Errorf("Int(int) = %d", got)
	}
	if got := p.Float("f", 0); got != 0.5 {
		t.Errorf("Float = %v", got)
	}
	if !p.Bool("b", false) {
		t.Error("Bool = false")
	}
	if p.Has("missing") {
		t.Error("Has(missing) = true")
	}
}
