// Package fieldpath converts between canonical path strings (`todos[0].title`)
// and segment slices, and reads/writes values at a path inside a value tree made
// of map[string]any, []any and leaves.
//
// Arrays may be sparse: a slot holding Hole is absent, which is different from a
// slot holding nil. Writes never mutate their input; only the containers on the
// written path are copied.
package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed reports a path string that does not follow the canonical grammar.
var ErrMalformed = errors.New("fieldpath: malformed path")

// Segment is one step of a Path: an object key or an array index.
type Segment struct {
	key   string
	index int
	isIdx bool
}

// Key returns an object-key segment.
func Key(k string) Segment { return Segment{key: k} }

// Index returns an array-index segment. Negative indices panic.
func Index(i int) Segment {
	if i < 0 {
		panic(fmt.Sprintf("fieldpath.Index: negative index %d", i))
	}
	return Segment{index: i, isIdx: true}
}

// IsIndex reports whether s addresses an array slot.
func (s Segment) IsIndex() bool { return s.isIdx }

// Key returns the object key; for index segments it is the decimal index.
func (s Segment) Key() string {
	if s.isIdx {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Index returns the array index, or -1 for key segments.
func (s Segment) Index() int {
	if !s.isIdx {
		return -1
	}
	return s.index
}

func (s Segment) String() string {
	if s.isIdx {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.key
}

// Path is a sequence of segments. The empty Path addresses the root.
type Path []Segment

// String renders the canonical form: `.` before keys (except the first) and
// `[n]` before indices.
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for i, s := range p {
		switch {
		case s.isIdx:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.index))
			b.WriteByte(']')
		case i == 0:
			b.WriteString(s.key)
		default:
			b.WriteByte('.')
			b.WriteString(s.key)
		}
	}
	return b.String()
}

// Append returns a new Path; p is never modified.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Parent returns the path without its last segment. The root's parent is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the final segment and false for the root.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// Equal reports segment-wise equality.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Related reports whether a and b are equal or one is an ancestor of the other.
func Related(a, b Path) bool { return a.HasPrefix(b) || b.HasPrefix(a) }

// Compare orders paths segment by segment: indices numerically, keys
// lexically, an index before a key, and a parent before its descendants.
func Compare(a, b Path) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		x, y := a[i], b[i]
		switch {
		case x.isIdx && y.isIdx:
			if x.index != y.index {
				if x.index < y.index {
					return -1
				}
				return 1
			}
		case x.isIdx:
			return -1
		case y.isIdx:
			return 1
		default:
			if c := strings.Compare(x.key, y.key); c != 0 {
				return c
			}
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Parse converts a path string into segments. Dotted numeric segments
// (`todos.0`) are read as indices, so `todos.0` and `todos[0]` are the same path.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	var out Path
	i := 0
	expectKey := true // at start or right after '.'
	for i < len(s) {
		c := s[i]
		switch {
		case c == '[':
			if expectKey && len(out) > 0 {
				return nil, malformed(s, i, "'.' before index")
			}
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				return nil, malformed(s, i, "unterminated index")
			}
			digits := s[i+1 : i+j]
			n, ok := parseIndex(digits)
			if !ok {
				return nil, malformed(s, i, "index must be a non-negative integer")
			}
			out = append(out, Segment{index: n, isIdx: true})
			i += j + 1
			if i < len(s) && s[i] != '.' && s[i] != '[' {
				return nil, malformed(s, i, "expected '.' or '[' after index")
			}
			expectKey = false
		case c == '.':
			if expectKey || i == len(s)-1 {
				return nil, malformed(s, i, "empty key")
			}
			expectKey = true
			i++
		case c == ']':
			return nil, malformed(s, i, "unexpected ']'")
		default:
			if !expectKey {
				return nil, malformed(s, i, "expected '.' before key")
			}
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' && s[j] != ']' {
				j++
			}
			key := s[i:j]
			if n, ok := parseIndex(key); ok {
				out = append(out, Segment{index: n, isIdx: true})
			} else {
				out = append(out, Segment{key: key})
			}
			i = j
			expectKey = false
		}
	}
	return out, nil
}

// MustParse is Parse that panics on malformed input.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Canonical re-renders s in canonical form.
func Canonical(s string) (string, error) {
	p, err := Parse(s)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// Merge concatenates fragments into a canonical path string. Parts may be path
// strings (possibly starting with `[n]`), ints, Segments or Paths; nil and ""
// are skipped. Other types and malformed strings panic.
func Merge(parts ...any) string {
	p, err := Join(parts...)
	if err != nil {
		panic(err)
	}
	return p.String()
}

// Join is Merge returning the Path and an error instead of panicking.
func Join(parts ...any) (Path, error) {
	var out Path
	for _, part := range parts {
		switch v := part.(type) {
		case nil:
		case string:
			if v == "" {
				continue
			}
			p, err := Parse(v)
			if err != nil {
				return nil, err
			}
			out = append(out, p...)
		case int:
			if v < 0 {
				return nil, fmt.Errorf("%w: negative index %d", ErrMalformed, v)
			}
			out = append(out, Segment{index: v, isIdx: true})
		case Segment:
			out = append(out, v)
		case Path:
			out = append(out, v...)
		default:
			return nil, fmt.Errorf("%w: unsupported fragment %T", ErrMalformed, part)
		}
	}
	return out, nil
}

func parseIndex(s string) (int, bool) {
	if s == "" || len(s) > 18 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	// "01" would not round-trip
	if len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	return n, true
}

func malformed(s string, pos int, why string) error {
	return fmt.Errorf("%w: %q at %d: %s", ErrMalformed, s, pos, why)
}
