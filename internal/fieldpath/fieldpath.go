// Package fieldpath addresses values inside decoded JSON/CSV structures.
//
// A Path is an ordered list of segments, each either a map key or a list
// index. Paths come from source definitions either as dotted strings
// ("levels.data") or as explicit segment lists; both forms resolve
// identically. Resolution never panics and never errors: a path that does
// not lead to a value reports absence, which is distinct from a present
// null value.
package fieldpath

import (
	"strconv"
	"strings"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
)

// Segment is one step of a Path: a map key or a list index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a map-key segment.
func Key(name string) Segment {
	return Segment{key: name}
}

// Index returns a list-index segment.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

// String renders the segment the way Parse would accept it.
func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Path addresses a value inside a nested container structure.
type Path struct {
	segments []Segment
}

// New builds a Path from explicit segments.
func New(segments ...Segment) Path {
	return Path{segments: segments}
}

// Parse builds a Path from dotted notation. Integer-looking segments become
// list indices only when listCapable is set; otherwise they stay map keys,
// so year-keyed maps ("2024.total") resolve as expected.
func Parse(dotted string, listCapable bool) (Path, error) {
	if dotted == "" {
		return Path{}, errs.Configf("empty field path")
	}
	parts := strings.Split(dotted, ".")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return Path{}, errs.Configf("empty segment in field path %q", dotted)
		}
		if listCapable && isDigits(part) {
			i, err := strconv.Atoi(part)
			if err != nil {
				return Path{}, errs.Configf("index segment %q in field path %q: %w", part, dotted, err)
			}
			segments = append(segments, Index(i))
			continue
		}
		segments = append(segments, Key(part))
	}
	return Path{segments: segments}, nil
}

// MustParse is Parse for hand-written source definitions; it panics on a
// malformed path, which is a programming error there.
func MustParse(dotted string, listCapable bool) Path {
	p, err := Parse(dotted, listCapable)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the path in dotted notation.
func (p Path) String() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// IsZero reports whether the path has no segments.
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}

// Resolve walks container along the path. ok is false when the path does
// not lead to a value: a missing key, an out-of-range index, or a scalar
// met before the final segment. A present nil value resolves with ok true.
func (p Path) Resolve(container any) (value any, ok bool) {
	cur := container
	for _, seg := range p.segments {
		switch c := cur.(type) {
		case map[string]any:
			if seg.isIndex {
				return nil, false
			}
			v, present := c[seg.key]
			if !present {
				return nil, false
			}
			cur = v
		case []any:
			if !seg.isIndex {
				return nil, false
			}
			if seg.index < 0 || seg.index >= len(c) {
				return nil, false
			}
			cur = c[seg.index]
		default:
			return nil, false
		}
	}
	return cur, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
