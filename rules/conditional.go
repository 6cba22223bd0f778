package rules

import (
	"context"
	"reflect"

	"github.com/reoring/formskema"
)

// Op defines simple comparison operators for If(...).Then(...)
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Conditional composes conditional execution of rules.
type Conditional struct {
	path string
	op   Op
	want any
	all  []Conditional // composite AND
	any  []Conditional // composite OR
}

// If builds a conditional that evaluates the value at an absolute form path
// against want. An absent path never holds.
func If(path string, op Op, want any) Conditional {
	return Conditional{path: formskema.At(path).String(), op: op, want: want}
}

// IfAll builds a conditional that requires all conditions to hold.
func IfAll(conds ...Conditional) Conditional { return Conditional{all: conds} }

// IfAny builds a conditional that requires any condition to hold.
func IfAny(conds ...Conditional) Conditional { return Conditional{any: conds} }

// And combines the receiver with additional conditions using logical AND.
func (c Conditional) And(others ...Conditional) Conditional {
	return IfAll(append([]Conditional{c}, others...)...)
}

// Or combines the receiver with additional conditions using logical OR.
func (c Conditional) Or(others ...Conditional) Conditional {
	return IfAny(append([]Conditional{c}, others...)...)
}

// Then attaches rules to run when the condition is satisfied.
func (c Conditional) Then(rules ...Rule) Rule {
	return When(c, rules...)
}

// Holds reports whether c is satisfied by values.
func (c Conditional) Holds(values formskema.Snapshot) bool { return c.eval(values) }

func (c Conditional) eval(values formskema.Snapshot) bool {
	if len(c.all) > 0 {
		for _, it := range c.all {
			if !it.eval(values) {
				return false
			}
		}
		return true
	}
	if len(c.any) > 0 {
		for _, it := range c.any {
			if it.eval(values) {
				return true
			}
		}
		return false
	}
	cur, ok := values.Lookup(c.path)
	if !ok {
		return false
	}
	return compare(cur, c.op, c.want)
}

// RequiredIf is Required applied only while cond holds.
func RequiredIf(cond Conditional) Rule {
	return When(cond, Required())
}

// Not inverts a rule: it fails with code when r reports nothing.
func Not(code string, r Rule) Rule {
	return func(ctx context.Context, f Field) []formskema.Issue {
		if len(r(ctx, f)) > 0 {
			return nil
		}
		return one(f.Issue(code))
	}
}

// compare treats every numeric kind as one domain, so a JSON float64 equals
// an int literal.
func compare(cur any, op Op, want any) bool {
	switch op {
	case Eq:
		return equal(cur, want)
	case Ne:
		return !equal(cur, want)
	case Lt, Le, Gt, Ge:
		return compareOrdered(cur, op, want)
	default:
		return false
	}
}

func equal(a, b any) bool {
	if x, ok := asNumber(a); ok {
		if y, ok := asNumber(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}

func asNumber(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case isIntLike(rv.Kind()):
		return float64(toInt64(rv)), true
	case isFloatLike(rv.Kind()):
		return toFloat64(rv), true
	}
	return 0, false
}

func compareOrdered(cur any, op Op, want any) bool {
	if a, ok := asNumber(cur); ok {
		if b, ok := asNumber(want); ok {
			return ordered(a, op, b)
		}
	}
	as, ok1 := cur.(string)
	bs, ok2 := want.(string)
	if ok1 && ok2 {
		return ordered(as, op, bs)
	}
	return false
}

func ordered[T float64 | string](a T, op Op, b T) bool {
	switch op {
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	}
	return false
}

func isIntLike(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func isFloatLike(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func toInt64(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	default:
		return 0
	}
}

func toFloat64(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float()
	default:
		return 0
	}
}
