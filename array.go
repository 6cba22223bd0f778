package formskema

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/reoring/formskema/arrays"
	"github.com/reoring/formskema/fieldpath"
)

// ArrayHandle mutates the array at one path. Every operation moves the errors,
// touched flags and item keys of nested fields along with the data, discards
// validation runs in flight under the array, and counts as a change event on
// the array path. A missing value is treated as an empty array.
type ArrayHandle struct {
	s    *Store
	path string
	p    fieldpath.Path
}

// Array returns a handle for the array at path.
func (s *Store) Array(path string) ArrayHandle {
	p := parsePath("Array", path)
	return ArrayHandle{s: s, path: p.String(), p: p}
}

// Path returns the array's canonical path.
func (a ArrayHandle) Path() string { return a.path }

// currentLocked returns the array at the handle's path; reason is non-empty
// when the value there is not an array.
func (a ArrayHandle) currentLocked() (arr []any, reason string) {
	cur, ok := fieldpath.Lookup(a.s.values, a.p)
	if !ok || cur == nil {
		return nil, ""
	}
	arr, isArr := cur.([]any)
	if !isArr {
		return nil, fmt.Sprintf("value is %T, not an array", cur)
	}
	return arr, ""
}

func (a ArrayHandle) read(op string) []any {
	a.s.mu.Lock()
	arr, reason := a.currentLocked()
	a.s.mu.Unlock()
	if reason != "" {
		misuse(op, a.path, reason)
	}
	return arr
}

// Len returns the array's length, holes included.
func (a ArrayHandle) Len() int { return len(a.read("Array.Len")) }

// Values returns a copy of the array.
func (a ArrayHandle) Values() []any { return arrays.Clone(a.read("Array.Values")) }

// Keys returns a stable key per slot. A slot keeps its key across swaps,
// moves, inserts and removals of other slots; inserted and replaced slots get
// fresh keys.
func (a ArrayHandle) Keys() []string {
	a.s.mu.Lock()
	arr, reason := a.currentLocked()
	if reason != "" {
		a.s.mu.Unlock()
		misuse("Array.Keys", a.path, reason)
	}
	defer a.s.mu.Unlock()
	return append([]string(nil), a.s.itemKeysLocked(a.path, len(arr))...)
}

// Push appends v.
func (a ArrayHandle) Push(v any) {
	a.apply("Array.Push", func(arr []any) (arrays.Op, bool) {
		return arrays.InsertOp(len(arr), v), true
	})
}

// Pop removes the last slot and returns its value. ok is false only when the
// array was empty; a hole slot yields nil, true.
func (a ArrayHandle) Pop() (any, bool) {
	var out any
	var ok bool
	a.apply("Array.Pop", func(arr []any) (arrays.Op, bool) {
		if len(arr) == 0 {
			return arrays.Op{}, false
		}
		out, ok = arr[len(arr)-1], true
		return arrays.RemoveOp(len(arr) - 1), true
	})
	if fieldpath.IsHole(out) {
		return nil, ok
	}
	return out, ok
}

// Shift removes the first slot and returns its value, with ok reported as
// for Pop.
func (a ArrayHandle) Shift() (any, bool) {
	var out any
	var ok bool
	a.apply("Array.Shift", func(arr []any) (arrays.Op, bool) {
		if len(arr) == 0 {
			return arrays.Op{}, false
		}
		out, ok = arr[0], true
		return arrays.RemoveOp(0), true
	})
	if fieldpath.IsHole(out) {
		return nil, ok
	}
	return out, ok
}

// Unshift prepends v.
func (a ArrayHandle) Unshift(v any) {
	a.apply("Array.Unshift", func([]any) (arrays.Op, bool) { return arrays.InsertOp(0, v), true })
}

// Insert puts v at i, shifting later slots up. Past the end the array is
// extended with holes.
func (a ArrayHandle) Insert(i int, v any) {
	checkIndex("Array.Insert", a.path, i)
	a.apply("Array.Insert", func([]any) (arrays.Op, bool) { return arrays.InsertOp(i, v), true })
}

// InsertEmpty inserts a hole at i.
func (a ArrayHandle) InsertEmpty(i int) {
	checkIndex("Array.InsertEmpty", a.path, i)
	a.apply("Array.InsertEmpty", func([]any) (arrays.Op, bool) { return arrays.InsertEmptyOp(i), true })
}

// Remove deletes slot i, shifting later slots down. Out of range is a no-op.
func (a ArrayHandle) Remove(i int) {
	checkIndex("Array.Remove", a.path, i)
	a.apply("Array.Remove", func(arr []any) (arrays.Op, bool) {
		return arrays.RemoveOp(i), i < len(arr)
	})
}

// Swap exchanges slots i and j.
func (a ArrayHandle) Swap(i, j int) {
	checkIndex("Array.Swap", a.path, i)
	checkIndex("Array.Swap", a.path, j)
	a.apply("Array.Swap", func([]any) (arrays.Op, bool) { return arrays.SwapOp(i, j), i != j })
}

// Move moves slot from to index to, shifting the slots in between.
func (a ArrayHandle) Move(from, to int) {
	checkIndex("Array.Move", a.path, from)
	checkIndex("Array.Move", a.path, to)
	a.apply("Array.Move", func([]any) (arrays.Op, bool) { return arrays.MoveOp(from, to), from != to })
}

// Replace overwrites slot i. The slot's metadata is cleared and it gets a new
// key.
func (a ArrayHandle) Replace(i int, v any) {
	checkIndex("Array.Replace", a.path, i)
	a.apply("Array.Replace", func([]any) (arrays.Op, bool) { return arrays.ReplaceOp(i, v), true })
}

func checkIndex(op, path string, i int) {
	if i < 0 {
		misuse(op, path, fmt.Sprintf("negative index %d", i))
	}
}

func (a ArrayHandle) apply(opName string, build func(arr []any) (arrays.Op, bool)) {
	s := a.s
	s.mu.Lock()
	arr, reason := a.currentLocked()
	if reason != "" {
		s.mu.Unlock()
		misuse(opName, a.path, reason)
	}
	op, ok := build(arr)
	if !ok {
		s.mu.Unlock()
		return
	}
	oldKeys := s.itemKeysLocked(a.path, len(arr))
	next := op.Apply(arrays.Clone(arr))
	s.values = fieldpath.Set(s.values, a.p, next)

	keys := make([]string, len(next))
	for old, k := range oldKeys {
		if n, ok := op.MapIndex(old); ok && n < len(keys) {
			keys[n] = k
		}
	}
	for i := range keys {
		if keys[i] == "" {
			keys[i] = ulid.Make().String()
		}
	}
	delete(s.keys, a.path)
	s.keys = remapUnder(s.keys, a.p, op)
	s.keys[a.path] = keys

	s.errors = remapUnder(s.errors, a.p, op)
	s.touched = remapUnder(s.touched, a.p, op)
	for k := range s.validating {
		if hasPathPrefix(k, a.p) && k != a.path {
			delete(s.validating, k)
		}
	}
	s.invalidateLocked(a.path, a.p)

	s.emitLocked(a.path, a.p, ChangeValue)
	s.emitLocked(a.path, a.p, ChangeError)
	s.emitLocked(a.path, a.p, ChangeTouched)
	run := s.triggerLocked(a.path, eventChange)
	s.mu.Unlock()
	s.flush()
	s.start(run)
}

// remapUnder rewrites the keys of m that address a slot of the array at p
// (or anything below a slot) to follow op. Keys of removed or replaced slots
// are dropped; everything else is kept as is.
func remapUnder[V any](m map[string]V, p fieldpath.Path, op arrays.Op) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		kp, err := fieldpath.Parse(k)
		if err != nil || len(kp) <= len(p) || !kp.HasPrefix(p) || !kp[len(p)].IsIndex() {
			out[k] = v
			continue
		}
		n, ok := op.MapIndex(kp[len(p)].Index())
		if !ok {
			continue
		}
		np := make(fieldpath.Path, 0, len(kp))
		np = append(np, kp[:len(p)]...)
		np = append(np, fieldpath.Index(n))
		np = append(np, kp[len(p)+1:]...)
		out[np.String()] = v
	}
	return out
}
