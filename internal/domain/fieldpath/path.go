// Package fieldpath parses and matches field path expressions used by the
// projection processor.
//
// Grammar, by example:
//
//	a.b.c     object keys, dot separated
//	orders[]  every element of the array at "orders"
//	a.*.id    "*" matches every key at that level
//	_keys     top-level object keys only (terminates descent)
//
// Paths are parsed once into a segment list and matched structurally against
// node paths produced while walking a JSON tree.
package fieldpath

import (
	"fmt"
	"strings"
)

// SegmentKind discriminates path segment types.
type SegmentKind int

const (
	// SegKey matches a single object key.
	SegKey SegmentKind = iota
	// SegWildcard matches any object key at this level.
	SegWildcard
	// SegElements matches every element of an array.
	SegElements
	// SegKeys is the special terminal "_keys" marker.
	SegKeys
)

// Segment is one step of a parsed path.
type Segment struct {
	Kind SegmentKind
	Key  string // set for SegKey; for SegElements it is the array's key ("" when anonymous)
}

// Path is a parsed field expression.
type Path struct {
	raw      string
	segments []Segment
}

// KeysOnly is the special expression that selects an object's top-level keys.
const KeysOnly = "_keys"

// Parse converts a field expression into a Path.
// Returns an error for empty expressions or empty segments ("a..b").
func Parse(expr string) (Path, error) {
	if expr == "" {
		return Path{}, fmt.Errorf("field path is empty")
	}
	if expr == KeysOnly {
		return Path{raw: expr, segments: []Segment{{Kind: SegKeys}}}, nil
	}

	parts := strings.Split(expr, ".")
	segments := make([]Segment, 0, len(parts)+1)
	for _, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("field path %q has an empty segment", expr)
		}
		switch {
		case part == "*":
			segments = append(segments, Segment{Kind: SegWildcard})
		case strings.HasSuffix(part, "[]"):
			key := strings.TrimSuffix(part, "[]")
			if key == "" {
				return Path{}, fmt.Errorf("field path %q has an anonymous array segment", expr)
			}
			// "orders[]" is the key followed by the elements marker.
			segments = append(segments, Segment{Kind: SegKey, Key: key})
			segments = append(segments, Segment{Kind: SegElements, Key: key})
		default:
			segments = append(segments, Segment{Kind: SegKey, Key: part})
		}
	}
	return Path{raw: expr, segments: segments}, nil
}

// ParseAll parses every expression, failing on the first invalid one.
func ParseAll(exprs []string) ([]Path, error) {
	paths := make([]Path, 0, len(exprs))
	for _, e := range exprs {
		p, err := Parse(e)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// String returns the original expression.
func (p Path) String() string { return p.raw }

// IsKeysOnly reports whether the path is the "_keys" marker.
func (p Path) IsKeysOnly() bool {
	return len(p.segments) == 1 && p.segments[0].Kind == SegKeys
}

// Step is one step of a concrete node path: an object key or an array index.
type Step struct {
	Key     string
	Element bool // true when this step descends into an array element
}

// MatchResult describes how a concrete node path relates to a field path.
type MatchResult int

const (
	// NoMatch: the node path diverges from this field path.
	NoMatch MatchResult = iota
	// PrefixMatch: the node path is a strict prefix; descendants may match.
	PrefixMatch
	// FullMatch: the node path satisfies the whole field path; the node and
	// its entire subtree are selected.
	FullMatch
)

// Match compares a concrete node path (the steps taken from the root to a
// node) against this field path.
//
// Array element steps are consumed by SegElements segments; to keep the
// common "users.name" shorthand working against arrays of objects (the
// original proxy's behavior), an element step is also skipped transparently
// when the next expected segment is a key: "users.name" matches
// users → [i] → name.
func (p Path) Match(steps []Step) MatchResult {
	return matchSegments(p.segments, steps)
}

func matchSegments(segs []Segment, steps []Step) MatchResult {
	for len(steps) > 0 {
		if len(segs) == 0 {
			// Node is below a fully matched path: still selected.
			return FullMatch
		}
		seg := segs[0]
		step := steps[0]

		switch seg.Kind {
		case SegKeys:
			// _keys never descends.
			return NoMatch
		case SegElements:
			if !step.Element {
				return NoMatch
			}
			segs = segs[1:]
			steps = steps[1:]
		case SegWildcard:
			if step.Element {
				// Wildcard crosses arrays transparently.
				steps = steps[1:]
				continue
			}
			segs = segs[1:]
			steps = steps[1:]
		case SegKey:
			if step.Element {
				// Implicit array traversal: "users.name" over users[i].name.
				steps = steps[1:]
				continue
			}
			if step.Key != seg.Key {
				return NoMatch
			}
			segs = segs[1:]
			steps = steps[1:]
		default:
			return NoMatch
		}
	}

	if len(segs) == 0 {
		return FullMatch
	}
	// A trailing elements segment leaves the array node itself a prefix:
	// "orders[]" selects the elements, so exclude empties the array instead
	// of deleting it.
	return PrefixMatch
}

// MatchAny returns the strongest result any of the paths yields.
func MatchAny(paths []Path, steps []Step) MatchResult {
	best := NoMatch
	for _, p := range paths {
		switch p.Match(steps) {
		case FullMatch:
			return FullMatch
		case PrefixMatch:
			best = PrefixMatch
		}
	}
	return best
}
