// Package processor implements the response processing pipeline: field
// projection, the four search modes, and structure exploration. Processors
// operate on textual content (usually serialized JSON) and are composed by a
// Pipeline that feeds each processor's output into the next.
package processor

import (
	"fmt"
	"log/slog"
)

// Params is the flat parameter map a pipeline run is configured with. Each
// processor inspects the map for its own keys and skips itself when they are
// absent.
type Params map[string]any

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Str returns the string at key, or def when absent or not a string.
func (p Params) Str(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// StrSlice returns the string slice at key. Accepts []string and []any of
// strings (the shape JSON decoding produces).
func (p Params) StrSlice(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

// Int returns the integer at key, or def when absent. Accepts int, int64 and
// float64 (JSON numbers decode as float64).
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns the float at key, or def when absent.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// Bool returns the boolean at key, or def when absent.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

// Result is the outcome of one processor run or of a whole pipeline.
type Result struct {
	// Content is the processed content.
	Content string
	// Metadata carries per-processor details (match counts, notes).
	Metadata map[string]any
	// OriginalSize is the input length in bytes, ProcessedSize the output.
	OriginalSize  int
	ProcessedSize int
	// Applied is true iff the processor's parameters were present and it ran.
	Applied bool
	// Err is a non-fatal processor failure. The pipeline logs it and
	// continues with the input content unchanged.
	Err error
}

// Processor transforms content according to its keys in the params map.
type Processor interface {
	// Name identifies the processor in metadata and the applied list.
	Name() string
	// Process runs the processor. When its parameters are absent from p it
	// must return its input unchanged with Applied=false.
	Process(content string, p Params) Result
}

// Pipeline is an ordered processor chain.
type Pipeline struct {
	procs  []Processor
	logger *slog.Logger
}

// NewPipeline builds a pipeline over the given processors.
func NewPipeline(logger *slog.Logger, procs ...Processor) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{procs: procs, logger: logger}
}

// Run feeds content through every processor in order. A processor error does
// not interrupt the chain: the failing step's input is passed on unchanged
// and the error is recorded under metadata["errors"].
func (pl *Pipeline) Run(content string, p Params) Result {
	out := Result{
		Content:      content,
		Metadata:     map[string]any{},
		OriginalSize: len(content),
	}
	var applied []string
	var errs []string

	for _, proc := range pl.procs {
		r := proc.Process(out.Content, p)
		if r.Err != nil {
			pl.logger.Warn("processor failed",
				"processor", proc.Name(),
				"error", r.Err)
			errs = append(errs, fmt.Sprintf("%s: %v", proc.Name(), r.Err))
			continue
		}
		if !r.Applied {
			continue
		}
		out.Content = r.Content
		applied = append(applied, proc.Name())
		if len(r.Metadata) > 0 {
			out.Metadata[proc.Name()] = r.Metadata
		}
	}

	out.ProcessedSize = len(out.Content)
	out.Applied = len(applied) > 0
	if len(applied) > 0 {
		out.Metadata["applied"] = applied
	}
	if len(errs) > 0 {
		out.Metadata["errors"] = errs
	}
	return out
}
