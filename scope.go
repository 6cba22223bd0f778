package formskema

import (
	"context"

	"github.com/reoring/formskema/fieldpath"
)

// Scope is a view of the sub-tree at one path that behaves like its own form.
// It holds no state: two scopes are == when they share a store and a
// canonical base path.
type Scope struct {
	s    *Store
	base string
}

// ScopeOf returns the scope of s rooted at base. Malformed paths panic with
// *MisuseError.
func ScopeOf(s *Store, base string) Scope {
	return Scope{s: s, base: parsePath("ScopeOf", base).String()}
}

// Scope returns the scope rooted at base.
func (s *Store) Scope(base string) Scope { return ScopeOf(s, base) }

// Scope returns a nested scope. Parts are merged as in fieldpath.Merge, so
// sc.Scope("todos", 2) and sc.Scope("todos[2]") are equal.
func (sc Scope) Scope(parts ...any) Scope {
	return Scope{s: sc.s, base: sc.Name(parts...)}
}

// Store returns the backing store.
func (sc Scope) Store() *Store { return sc.s }

// Path returns the canonical base path.
func (sc Scope) Path() string { return sc.base }

// Name returns the canonical path of a field below the scope.
func (sc Scope) Name(parts ...any) string {
	p, err := fieldpath.Join(append([]any{sc.base}, parts...)...)
	if err != nil {
		misuse("Scope.Name", sc.base, err.Error())
	}
	return p.String()
}

// Equal reports whether sc and o address the same sub-tree of the same store.
func (sc Scope) Equal(o Scope) bool { return sc == o }

func (sc Scope) Value() any                    { return sc.s.GetValue(sc.base) }
func (sc Scope) ValueAt(sub string) any        { return sc.s.GetValue(sc.Name(sub)) }
func (sc Scope) SetValue(v any)                { sc.s.SetValue(sc.base, v) }
func (sc Scope) SetValueAt(sub string, v any)  { sc.s.SetValue(sc.Name(sub), v) }
func (sc Scope) FieldError() string            { return sc.s.GetError(sc.base) }
func (sc Scope) ErrorAt(sub string) string     { return sc.s.GetError(sc.Name(sub)) }
func (sc Scope) SetError(msg string)           { sc.s.SetError(sc.base, msg) }
func (sc Scope) Touched() bool                 { return sc.s.GetTouched(sc.base) }
func (sc Scope) SetTouched(touched bool)       { sc.s.SetTouched(sc.base, touched) }
func (sc Scope) Blur()                         { sc.s.Blur(sc.base) }
func (sc Scope) Dirty() bool                   { return sc.s.IsDirty(sc.base) }
func (sc Scope) Validating() bool              { return sc.s.IsValidating(sc.base) }
func (sc Scope) Reset()                        { sc.s.ResetField(sc.base) }
func (sc Scope) Register() (unregister func()) { return sc.s.RegisterField(sc.base) }

// Errors returns the errors at the scope's path and below, keyed by full path.
func (sc Scope) Errors() FieldErrors { return sc.s.ErrorsUnder(sc.base) }

// Validate validates the scope's own path now.
func (sc Scope) Validate(ctx context.Context) (string, error) {
	return sc.s.ValidateField(ctx, sc.base)
}

// Array returns the array handle at the scope's path.
func (sc Scope) Array() ArrayHandle { return sc.s.Array(sc.base) }

// Items returns one scope per slot of the array at the scope's path, holes
// included, paired with the slot's stable key.
func (sc Scope) Items() []Item {
	a := sc.Array()
	keys := a.Keys()
	out := make([]Item, len(keys))
	for i, k := range keys {
		out[i] = Item{Key: k, Scope: sc.Scope(i)}
	}
	return out
}

// Item is one array slot as seen through Scope.Items.
type Item struct {
	Key   string
	Scope Scope
}

// Subscribe listens for changes related to the scope's path.
func (sc Scope) Subscribe(l Listener) (unsubscribe func()) { return sc.s.Subscribe(sc.base, l) }
