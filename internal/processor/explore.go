package processor

import (
	"fmt"

	"github.com/mcplens/mcplens/internal/domain/jsonval"
)

// Explore defaults.
const (
	defaultMaxDepth   = 3
	defaultSampleSize = 3
	sampleChars       = 120
)

// Explore produces a compact JSON summary of the content's structure without
// emitting the payload itself.
//
// Params: "explore" (bool, the trigger); options "max_depth" (default 3),
// "sample_size" (default 3), "list_fields" (bool, emit a flat dotted field
// path listing instead of the nested summary).
type Explore struct{}

// Name implements Processor.
func (Explore) Name() string { return "explore" }

// Process implements Processor.
func (Explore) Process(content string, p Params) Result {
	if !p.Bool("explore", false) {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	maxDepth := p.Int("max_depth", defaultMaxDepth)
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	sampleSize := p.Int("sample_size", defaultSampleSize)
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	root, err := jsonval.Parse([]byte(content))
	if err != nil {
		// Plain text: summarize it as one string value.
		root = jsonval.String(content)
	}

	if p.Bool("list_fields", false) {
		fields := discoverFields(root, maxDepth)
		listing := jsonval.Array()
		for _, f := range fields {
			listing.Items = append(listing.Items, jsonval.String(f))
		}
		out, err := listing.Encode()
		if err != nil {
			return Result{Err: err}
		}
		return Result{
			Content:       out,
			Metadata:      map[string]any{"max_depth": maxDepth, "field_count": len(fields)},
			OriginalSize:  len(content),
			ProcessedSize: len(out),
			Applied:       true,
		}
	}

	summary := summarize(root, maxDepth, sampleSize)
	out, err := summary.Encode()
	if err != nil {
		return Result{Err: err}
	}
	return Result{
		Content:       out,
		Metadata:      map[string]any{"max_depth": maxDepth, "sample_size": sampleSize},
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
	}
}

// summarize renders one node's summary, recursing into containers while
// depth remains.
func summarize(v *jsonval.Value, depth, sampleSize int) *jsonval.Value {
	out := jsonval.Object()
	out.Set("type", jsonval.String(v.Kind.TypeName()))

	switch v.Kind {
	case jsonval.KindObject:
		out.Set("keyCount", jsonval.Number64(int64(len(v.Fields))))
		keys := jsonval.Object()
		for _, f := range v.Fields {
			if depth <= 1 && f.Value.IsContainer() {
				stub := jsonval.Object()
				stub.Set("type", jsonval.String(f.Value.Kind.TypeName()))
				stub.Set("sizeHint", jsonval.Number64(int64(f.Value.Len())))
				keys.Set(f.Key, stub)
				continue
			}
			keys.Set(f.Key, summarize(f.Value, depth-1, sampleSize))
		}
		out.Set("keys", keys)

	case jsonval.KindArray:
		out.Set("length", jsonval.Number64(int64(len(v.Items))))
		out.Set("elementTypes", typeHistogram(v.Items))
		n := min(len(v.Items), sampleSize)
		sample := jsonval.Array()
		for _, item := range v.Items[:n] {
			if depth <= 1 && item.IsContainer() {
				stub := jsonval.Object()
				stub.Set("type", jsonval.String(item.Kind.TypeName()))
				stub.Set("sizeHint", jsonval.Number64(int64(item.Len())))
				sample.Items = append(sample.Items, stub)
				continue
			}
			sample.Items = append(sample.Items, summarize(item, depth-1, sampleSize))
		}
		out.Set("sample", sample)

	case jsonval.KindString:
		out.Set("length", jsonval.Number64(int64(len(v.Str))))
		out.Set("sample", jsonval.String(firstChars(v.Str, sampleChars)))

	case jsonval.KindNumber:
		out.Set("value", &jsonval.Value{Kind: jsonval.KindNumber, Number: v.Number})

	case jsonval.KindBool:
		out.Set("value", jsonval.Boolean(v.Bool))

	case jsonval.KindNull:
		// Type alone is the whole summary.
	}
	return out
}

// discoverFields lists every dotted field path reachable within maxDepth
// object levels. Array traversal appends "[]" to the owning path and does not
// consume depth; paths seen across multiple array elements are deduplicated
// in first-appearance order.
func discoverFields(v *jsonval.Value, maxDepth int) []string {
	var out []string
	seen := map[string]bool{}

	var walk func(v *jsonval.Value, prefix string, depth int)
	walk = func(v *jsonval.Value, prefix string, depth int) {
		switch v.Kind {
		case jsonval.KindObject:
			if depth <= 0 {
				return
			}
			for _, f := range v.Fields {
				path := f.Key
				if prefix != "" {
					path = prefix + "." + f.Key
				}
				if !seen[path] {
					seen[path] = true
					out = append(out, path)
				}
				walk(f.Value, path, depth-1)
			}
		case jsonval.KindArray:
			for _, item := range v.Items {
				walk(item, prefix+"[]", depth)
			}
		}
	}
	walk(v, "", maxDepth)
	return out
}

// typeHistogram counts element kinds in source order of first appearance.
func typeHistogram(items []*jsonval.Value) *jsonval.Value {
	hist := jsonval.Object()
	counts := map[string]int64{}
	for _, item := range items {
		counts[item.Kind.TypeName()]++
	}
	for _, item := range items {
		name := item.Kind.TypeName()
		if _, seen := hist.Get(name); !seen {
			hist.Set(name, jsonval.Number64(counts[name]))
		}
	}
	return hist
}

// firstChars truncates at a rune boundary with an ellipsis marker.
func firstChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(runes[:n]))
}
