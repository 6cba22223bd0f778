package fieldpath

import (
	"errors"
	"fmt"
	"sort"
)

type hole struct{}

func (hole) String() string { return "<hole>" }

// Hole marks an absent array slot. It is never a leaf value.
var Hole any = hole{}

// IsHole reports whether v is the Hole marker.
func IsHole(v any) bool {
	_, ok := v.(hole)
	return ok
}

// Lookup returns the value at p and whether it is present. Missing keys,
// holes, out-of-range indices and descents into leaves report false.
func Lookup(tree any, p Path) (any, bool) {
	if IsHole(tree) {
		return nil, false
	}
	cur := tree
	for _, seg := range p {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg.Key()]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !seg.isIdx || seg.index >= len(c) || IsHole(c[seg.index]) {
				return nil, false
			}
			cur = c[seg.index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Get is Lookup without the presence flag.
func Get(tree any, p Path) any {
	v, _ := Lookup(tree, p)
	return v
}

// Set returns a tree with value stored at p. Containers on the path are copied,
// everything else is shared with tree. Missing intermediates are created as
// []any when the following segment is an index and map[string]any otherwise;
// writing past the end of an array pads it with holes. An array addressed by a
// key segment is replaced by an object; CheckSet reports that case.
func Set(tree any, p Path, value any) any {
	if len(p) == 0 {
		return value
	}
	seg, rest := p[0], p[1:]
	switch c := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(c)+1)
		for k, v := range c {
			out[k] = v
		}
		k := seg.Key()
		out[k] = Set(childOf(c[k]), rest, value)
		return out
	case []any:
		if seg.isIdx {
			n := max(len(c), seg.index+1)
			out := make([]any, n)
			copy(out, c)
			for i := len(c); i < n; i++ {
				out[i] = Hole
			}
			out[seg.index] = Set(childOf(out[seg.index]), rest, value)
			return out
		}
	}
	return Set(emptyFor(seg), p, value)
}

// ErrTypeConflict is returned by CheckSet when a key segment addresses an
// existing array.
var ErrTypeConflict = errors.New("fieldpath: key segment addresses an array")

// CheckSet reports whether Set(tree, p, v) would discard an existing array
// because p addresses it by key. The error names the array's path.
func CheckSet(tree any, p Path) error {
	cur := childOf(tree)
	for i, seg := range p {
		switch c := cur.(type) {
		case []any:
			if !seg.isIdx {
				return fmt.Errorf("%w: %q", ErrTypeConflict, p[:i].String())
			}
			if seg.index >= len(c) {
				return nil
			}
			cur = childOf(c[seg.index])
		case map[string]any:
			v, ok := c[seg.Key()]
			if !ok {
				return nil
			}
			cur = v
		default:
			return nil
		}
	}
	return nil
}

// Unset returns a tree without the value at p: object keys are deleted and
// array slots become holes. Missing paths return tree unchanged.
func Unset(tree any, p Path) any {
	if len(p) == 0 {
		return nil
	}
	if _, ok := Lookup(tree, p); !ok {
		return tree
	}
	return unset(tree, p)
}

func unset(tree any, p Path) any {
	seg, rest := p[0], p[1:]
	switch c := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, v := range c {
			out[k] = v
		}
		k := seg.Key()
		if len(rest) == 0 {
			delete(out, k)
		} else {
			out[k] = unset(c[k], rest)
		}
		return out
	case []any:
		out := make([]any, len(c))
		copy(out, c)
		if len(rest) == 0 {
			out[seg.index] = Hole
		} else {
			out[seg.index] = unset(c[seg.index], rest)
		}
		return out
	}
	return tree
}

func childOf(v any) any {
	if IsHole(v) {
		return nil
	}
	return v
}

func emptyFor(seg Segment) any {
	if seg.isIdx {
		return []any{}
	}
	return map[string]any{}
}

// Entry is one leaf of a flattened tree.
type Entry struct {
	Path  string
	Value any
}

// Flatten lists the leaves of tree in a deterministic order: object keys
// sorted, array indices ascending. Holes are skipped; empty objects and arrays
// are emitted as leaves so they survive FromFlatEntries. Object keys that are
// decimal integers render as indices ("m[0]" for {"m": {"0": x}}).
func Flatten(tree any) []Entry {
	var out []Entry
	flatten(tree, nil, &out)
	return out
}

func flatten(v any, cur Path, out *[]Entry) {
	switch c := v.(type) {
	case map[string]any:
		if len(c) == 0 {
			break
		}
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(c[k], cur.Append(keySegment(k)), out)
		}
		return
	case []any:
		if len(c) == 0 {
			break
		}
		for i, e := range c {
			if IsHole(e) {
				continue
			}
			flatten(e, cur.Append(Segment{index: i, isIdx: true}), out)
		}
		return
	}
	*out = append(*out, Entry{Path: cur.String(), Value: v})
}

// keySegment keeps numeric object keys addressable after a String/Parse trip.
func keySegment(k string) Segment {
	if n, ok := parseIndex(k); ok {
		return Segment{index: n, isIdx: true}
	}
	return Segment{key: k}
}

// ToFlatMap is Flatten collected into a map keyed by canonical path.
func ToFlatMap(tree any) map[string]any {
	entries := Flatten(tree)
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.Path] = e.Value
	}
	return out
}

// FromFlatEntries rebuilds a tree from leaves. Later entries win when paths
// repeat. The tree of zero entries is nil. Index segments create arrays, so an
// object with decimal-integer keys comes back as an array padded with holes.
func FromFlatEntries(entries []Entry) (any, error) {
	var tree any
	for _, e := range entries {
		p, err := Parse(e.Path)
		if err != nil {
			return nil, err
		}
		tree = Set(tree, p, e.Value)
	}
	return tree, nil
}

// Clone deep-copies the containers of tree; leaves are shared.
func Clone(tree any) any {
	switch c := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, v := range c {
			out[k] = Clone(v)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, v := range c {
			out[i] = Clone(v)
		}
		return out
	}
	return tree
}

// Leaves returns the canonical paths of every present leaf under p, in Flatten order.
func Leaves(tree any, p Path) []string {
	sub, ok := Lookup(tree, p)
	if !ok {
		return nil
	}
	entries := Flatten(sub)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		rel, _ := Parse(e.Path)
		out = append(out, p.Append(rel...).String())
	}
	return out
}
