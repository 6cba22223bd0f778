package arrays

// Kind names an array mutation.
type Kind int

const (
	KindSwap Kind = iota
	KindMove
	KindInsert
	KindInsertEmpty
	KindRemove
	KindReplace
)

func (k Kind) String() string {
	switch k {
	case KindSwap:
		return "swap"
	case KindMove:
		return "move"
	case KindInsert:
		return "insert"
	case KindInsertEmpty:
		return "insertEmpty"
	case KindRemove:
		return "remove"
	case KindReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Op is a recorded mutation. Besides applying it to a slice, an Op tells where
// the data that lived at an old index ended up, which is what per-index
// metadata (errors, touched flags, item keys) needs in order to follow it.
type Op struct {
	Kind  Kind
	I     int // index (swap: first index, move: from)
	J     int // swap: second index, move: to
	Value any // insert/replace payload
}

// SwapOp records Swap(i, j).
func SwapOp(i, j int) Op { return Op{Kind: KindSwap, I: i, J: j} }

// MoveOp records Move(from, to).
func MoveOp(from, to int) Op { return Op{Kind: KindMove, I: from, J: to} }

// InsertOp records Insert(index, value).
func InsertOp(index int, value any) Op { return Op{Kind: KindInsert, I: index, Value: value} }

// InsertEmptyOp records InsertEmpty(index).
func InsertEmptyOp(index int) Op { return Op{Kind: KindInsertEmpty, I: index} }

// RemoveOp records Remove(index).
func RemoveOp(index int) Op { return Op{Kind: KindRemove, I: index} }

// ReplaceOp records Replace(index, value).
func ReplaceOp(index int, value any) Op { return Op{Kind: KindReplace, I: index, Value: value} }

// Apply runs the mutation on arr.
func (o Op) Apply(arr []any) []any {
	switch o.Kind {
	case KindSwap:
		return Swap(arr, o.I, o.J)
	case KindMove:
		return Move(arr, o.I, o.J)
	case KindInsert:
		return Insert(arr, o.I, o.Value)
	case KindInsertEmpty:
		return InsertEmpty(arr, o.I)
	case KindRemove:
		return Remove(arr, o.I)
	case KindReplace:
		return Replace(arr, o.I, o.Value)
	}
	return arr
}

// MapIndex returns the index that the slot previously at old occupies after
// the mutation. ok is false when the slot's data is gone: a removed index, or a
// replaced one whose old data was overwritten.
func (o Op) MapIndex(old int) (int, bool) {
	switch o.Kind {
	case KindSwap:
		switch old {
		case o.I:
			return o.J, true
		case o.J:
			return o.I, true
		}
	case KindMove:
		from, to := o.I, o.J
		switch {
		case old == from:
			return to, true
		case from < to && old > from && old <= to:
			return old - 1, true
		case from > to && old >= to && old < from:
			return old + 1, true
		}
	case KindInsert, KindInsertEmpty:
		if old >= o.I {
			return old + 1, true
		}
	case KindRemove:
		switch {
		case old == o.I:
			return 0, false
		case old > o.I:
			return old - 1, true
		}
	case KindReplace:
		if old == o.I {
			return 0, false
		}
	}
	return old, true
}

// Inserted reports the index of a slot that did not exist before the mutation,
// if any.
func (o Op) Inserted() (int, bool) {
	switch o.Kind {
	case KindInsert, KindInsertEmpty, KindReplace:
		return o.I, true
	}
	return 0, false
}
