package processor

import (
	"fmt"

	"github.com/mcplens/mcplens/internal/domain/fieldpath"
	"github.com/mcplens/mcplens/internal/domain/jsonval"
)

// Projection keeps or removes fields of JSON-shaped content according to a
// list of field path expressions.
//
// Params: "fields" ([]string), "mode" ("include" or "exclude", default
// include). Non-JSON content passes through unchanged with a metadata note.
type Projection struct{}

// Name implements Processor.
func (Projection) Name() string { return "projection" }

// Process implements Processor.
func (pr Projection) Process(content string, p Params) Result {
	if !p.Has("fields") {
		return Result{Content: content, OriginalSize: len(content), ProcessedSize: len(content)}
	}

	fields := p.StrSlice("fields")
	mode := p.Str("mode", "include")
	if mode != "include" && mode != "exclude" {
		return Result{Err: fmt.Errorf("invalid projection mode %q", mode)}
	}

	paths, err := fieldpath.ParseAll(fields)
	if err != nil {
		return Result{Err: err}
	}

	root, err := jsonval.Parse([]byte(content))
	if err != nil {
		// Plain text cannot be projected.
		return Result{
			Content:       content,
			Metadata:      map[string]any{"note": "content is not JSON, projection skipped"},
			OriginalSize:  len(content),
			ProcessedSize: len(content),
		}
	}

	var projected *jsonval.Value
	if mode == "include" {
		if keysOnly(paths) {
			projected = topLevelKeys(root)
		} else {
			projected = includeValue(root, paths, nil)
			if projected == nil {
				projected = emptyShape(root)
			}
		}
	} else {
		projected = excludeValue(root, paths, nil)
	}

	out, err := projected.Encode()
	if err != nil {
		return Result{Err: err}
	}
	return Result{
		Content:       out,
		Metadata:      map[string]any{"mode": mode, "fields": len(fields)},
		OriginalSize:  len(content),
		ProcessedSize: len(out),
		Applied:       true,
	}
}

func keysOnly(paths []fieldpath.Path) bool {
	for _, p := range paths {
		if p.IsKeysOnly() {
			return true
		}
	}
	return false
}

// topLevelKeys renders the _keys projection: the object's key list.
func topLevelKeys(v *jsonval.Value) *jsonval.Value {
	keys := v.Keys()
	items := make([]*jsonval.Value, len(keys))
	for i, k := range keys {
		items[i] = jsonval.String(k)
	}
	return jsonval.Array(items...)
}

// emptyShape mirrors the input's container kind for an empty include result.
func emptyShape(v *jsonval.Value) *jsonval.Value {
	if v.Kind == jsonval.KindArray {
		return jsonval.Array()
	}
	return jsonval.Object()
}

// includeValue keeps a node iff some descendant leaf matches a path. Returns
// nil for pruned leaves; containers on a prefix path keep their shape even
// when every child prunes away, so an empty container in the output is
// distinguishable from an absent one.
func includeValue(v *jsonval.Value, paths []fieldpath.Path, at []fieldpath.Step) *jsonval.Value {
	switch fieldpath.MatchAny(paths, at) {
	case fieldpath.FullMatch:
		return v
	case fieldpath.NoMatch:
		return nil
	}

	// PrefixMatch: descend and keep only surviving children.
	switch v.Kind {
	case jsonval.KindObject:
		out := jsonval.Object()
		for _, f := range v.Fields {
			child := includeValue(f.Value, paths, append(at, fieldpath.Step{Key: f.Key}))
			if child != nil {
				out.Fields = append(out.Fields, jsonval.Field{Key: f.Key, Value: child})
			}
		}
		return out
	case jsonval.KindArray:
		out := jsonval.Array()
		for _, item := range v.Items {
			child := includeValue(item, paths, append(at, fieldpath.Step{Element: true}))
			if child != nil {
				out.Items = append(out.Items, child)
			}
		}
		return out
	default:
		// A scalar on a prefix path has no matching leaf below it.
		return nil
	}
}

// excludeValue removes nodes whose path fully matches an excluded field and
// keeps everything else.
func excludeValue(v *jsonval.Value, paths []fieldpath.Path, at []fieldpath.Step) *jsonval.Value {
	switch v.Kind {
	case jsonval.KindObject:
		out := jsonval.Object()
		for _, f := range v.Fields {
			childPath := append(at, fieldpath.Step{Key: f.Key})
			if fieldpath.MatchAny(paths, childPath) == fieldpath.FullMatch {
				continue
			}
			out.Fields = append(out.Fields, jsonval.Field{
				Key:   f.Key,
				Value: excludeValue(f.Value, paths, childPath),
			})
		}
		return out
	case jsonval.KindArray:
		out := jsonval.Array()
		for _, item := range v.Items {
			childPath := append(at, fieldpath.Step{Element: true})
			if fieldpath.MatchAny(paths, childPath) == fieldpath.FullMatch {
				continue
			}
			out.Items = append(out.Items, excludeValue(item, paths, childPath))
		}
		return out
	default:
		return v
	}
}
