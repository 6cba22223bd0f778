package formskema

import (
	"reflect"

	"github.com/reoring/formskema/fieldpath"
)

// FieldPath is the path of a struct field of T, obtained through PathOf so
// that renaming or removing the field breaks the build instead of a string.
type FieldPath[T any] struct {
	p fieldpath.Path
}

// String returns the canonical path.
func (f FieldPath[T]) String() string { return f.p.String() }

// Path returns the parsed path.
func (f FieldPath[T]) Path() fieldpath.Path { return f.p.Append() }

// In returns the scope of the field below sc.
func (f FieldPath[T]) In(sc Scope) Scope { return sc.Scope(f.p) }

// FieldNameOf returns the key name for a top-level field of S selected by selector.
// Example: FieldNameOf[Todo](func(t *Todo) *string { return &t.Title }) -> "title".
func FieldNameOf[S any, F any](selector func(*S) *F) string {
	p := PathOf(selector).p
	if len(p) != 1 {
		panic("formskema.FieldNameOf: selector must return address of a top-level field")
	}
	return p[0].Key()
}

// PathOf builds the path of a possibly nested field of T. The selector must
// return the address of the field, e.g.:
//
//	PathOf(func(f *Signup) *string { return &f.Address.City })
//
// Only struct fields are descended (no pointers, slices or maps).
func PathOf[T any, F any](selector func(*T) *F) FieldPath[T] {
	if selector == nil {
		panic("formskema.PathOf: selector must not be nil")
	}
	var zero T
	target := reflect.ValueOf(selector(&zero)).Pointer()
	keys, ok := findPathKeys(reflect.ValueOf(&zero).Elem(), target, reflect.TypeOf((*F)(nil)).Elem(), 0)
	if !ok || len(keys) == 0 {
		panic("formskema.PathOf: selector must address a nested struct field (non-pointer)")
	}
	p := make(fieldpath.Path, len(keys))
	for i, k := range keys {
		p[i] = fieldpath.Key(k)
	}
	return FieldPath[T]{p: p}
}

const _maxPathDepth = 32

func findPathKeys(v reflect.Value, target uintptr, ft reflect.Type, depth int) ([]string, bool) {
	if depth > _maxPathDepth || v.Kind() != reflect.Struct {
		return nil, false
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := v.Field(i)
		name := ResolveStructKey(sf)
		// A nested struct's first field shares its parent's address; prefer
		// the deepest match whose type is F.
		if fv.Kind() == reflect.Struct {
			if rest, ok := findPathKeys(fv, target, ft, depth+1); ok {
				if name == "" || name == "-" {
					return nil, false
				}
				return append([]string{name}, rest...), true
			}
		}
		if fv.CanAddr() && fv.Addr().Pointer() == target && sf.Type == ft {
			if name == "" || name == "-" {
				return nil, false
			}
			return []string{name}, true
		}
	}
	return nil, false
}
