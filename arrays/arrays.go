// Package arrays implements the mutations a field array goes through (swap,
// move, insert, remove, replace) over []any without materializing holes.
//
// A slot holding fieldpath.Hole is absent: it was never written. Every
// operation carries holes as holes, so a slot that was never visited never
// picks up per-field metadata after reordering.
//
// Functions mutate arr in place when the length does not change and return the
// resulting slice; callers that need the original must Clone it first.
package arrays

import (
	"fmt"

	"github.com/reoring/formskema/fieldpath"
)

// Has reports whether slot i holds a value.
func Has(arr []any, i int) bool {
	return i >= 0 && i < len(arr) && !fieldpath.IsHole(arr[i])
}

// Clone copies arr; element values are shared.
func Clone(arr []any) []any {
	if arr == nil {
		return nil
	}
	out := make([]any, len(arr))
	copy(out, arr)
	return out
}

// Swap exchanges slots i and j. A hole on one side ends up as a hole on the
// other; the array only grows to fit a present value.
func Swap(arr []any, i, j int) []any {
	checkIndex("Swap", i)
	checkIndex("Swap", j)
	vi, hi := slot(arr, i)
	vj, hj := slot(arr, j)
	arr = put(arr, i, vj, hj)
	return put(arr, j, vi, hi)
}

// Move removes the slot at from and reinserts it at to, shifting the slots in
// between by one.
func Move(arr []any, from, to int) []any {
	checkIndex("Move", from)
	checkIndex("Move", to)
	v, ok := slot(arr, from)
	if from < to {
		for i := from; i < to; i++ {
			nv, has := slot(arr, i+1)
			arr = put(arr, i, nv, has)
		}
	} else {
		for i := from; i > to; i-- {
			nv, has := slot(arr, i-1)
			arr = put(arr, i, nv, has)
		}
	}
	return put(arr, to, v, ok)
}

// Insert places value at index, shifting later slots up. Inserting past the
// end pads the gap with holes.
func Insert(arr []any, index int, value any) []any {
	checkIndex("Insert", index)
	return insert(arr, index, value, true)
}

// InsertEmpty inserts a hole at index, shifting later slots up.
func InsertEmpty(arr []any, index int) []any {
	checkIndex("InsertEmpty", index)
	return insert(arr, index, nil, false)
}

func insert(arr []any, index int, value any, has bool) []any {
	if index >= len(arr) {
		arr = grow(arr, index+1)
		return put(arr, index, value, has)
	}
	arr = append(arr, fieldpath.Hole)
	copy(arr[index+1:], arr[index:len(arr)-1])
	return put(arr, index, value, has)
}

// Remove deletes slot index, shifting later slots down. Out-of-range indices
// leave arr unchanged.
func Remove(arr []any, index int) []any {
	checkIndex("Remove", index)
	if index >= len(arr) {
		return arr
	}
	copy(arr[index:], arr[index+1:])
	arr[len(arr)-1] = nil
	return arr[:len(arr)-1]
}

// Replace stores value at index. The slot is always present afterwards.
func Replace(arr []any, index int, value any) []any {
	checkIndex("Replace", index)
	arr = grow(arr, index+1)
	arr[index] = value
	return arr
}

func slot(arr []any, i int) (any, bool) {
	if !Has(arr, i) {
		return nil, false
	}
	return arr[i], true
}

// put writes v at i, or a hole when has is false. Writing a hole past the end
// does not extend the array.
func put(arr []any, i int, v any, has bool) []any {
	if !has {
		if i < len(arr) {
			arr[i] = fieldpath.Hole
		}
		return arr
	}
	arr = grow(arr, i+1)
	arr[i] = v
	return arr
}

func grow(arr []any, n int) []any {
	for len(arr) < n {
		arr = append(arr, fieldpath.Hole)
	}
	return arr
}

func checkIndex(op string, i int) {
	if i < 0 {
		panic(fmt.Sprintf("arrays.%s: negative index %d", op, i))
	}
}
