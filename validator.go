package formskema

import (
	"context"

	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/wire"
)

// Snapshot is an immutable view of a value tree. Stores never mutate trees in
// place, so a Snapshot stays valid after later writes.
type Snapshot struct {
	tree any
}

// SnapshotOf wraps tree. The caller must not mutate tree afterwards.
func SnapshotOf(tree any) Snapshot { return Snapshot{tree: tree} }

// Tree returns the underlying value tree.
func (s Snapshot) Tree() any { return s.tree }

// Lookup returns the value at path and whether it is present. Malformed paths
// are absent.
func (s Snapshot) Lookup(path string) (any, bool) {
	p, err := fieldpath.Parse(path)
	if err != nil {
		return nil, false
	}
	return fieldpath.Lookup(s.tree, p)
}

// Get is Lookup without the presence flag.
func (s Snapshot) Get(path string) any {
	v, _ := s.Lookup(path)
	return v
}

// Flat returns every leaf keyed by canonical path.
func (s Snapshot) Flat() map[string]any { return fieldpath.ToFlatMap(s.tree) }

// Entries returns every leaf in deterministic path order.
func (s Snapshot) Entries() []fieldpath.Entry { return fieldpath.Flatten(s.tree) }

// Decode binds the tree into dst, a pointer to a struct, map or slice.
func (s Snapshot) Decode(dst any) error { return wire.Bind(s.tree, dst) }

// Result is the outcome of a whole-form validation. Data optionally carries
// a transformed copy of the values; Errors is empty when the form is valid.
type Result struct {
	Data   any
	Errors FieldErrors
}

// Valid reports whether r has no field errors.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Validator validates a whole form. Validation failures belong in
// Result.Errors; a non-nil error means the validator could not run.
type Validator interface {
	Validate(ctx context.Context, values Snapshot) (Result, error)
}

// FieldValidator is implemented by validators that can check a single path
// without validating the whole form.
type FieldValidator interface {
	ValidateField(ctx context.Context, values Snapshot, path string) (string, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, values Snapshot) (Result, error)

func (f ValidatorFunc) Validate(ctx context.Context, values Snapshot) (Result, error) {
	return f(ctx, values)
}

// ValidateAt runs single-field validation: FieldValidator when implemented,
// otherwise Validate with the entry at path picked out; keys are matched in
// canonical form, so "todos.0.title" answers "todos[0].title". A nil
// Validator accepts everything.
func ValidateAt(ctx context.Context, v Validator, values Snapshot, path string) (string, error) {
	if v == nil {
		return "", nil
	}
	if fv, ok := v.(FieldValidator); ok {
		return fv.ValidateField(ctx, values, path)
	}
	res, err := v.Validate(ctx, values)
	if err != nil {
		return "", err
	}
	if msg, ok := res.Errors[path]; ok {
		return msg, nil
	}
	want := path
	if p, err := fieldpath.Parse(path); err == nil {
		want = p.String()
	}
	for k, msg := range res.Errors {
		if p, err := fieldpath.Parse(k); err == nil && msg != "" && p.String() == want {
			return msg, nil
		}
	}
	return "", nil
}

func validateAll(ctx context.Context, v Validator, values Snapshot) (Result, error) {
	if v == nil {
		return Result{Data: values.Tree()}, nil
	}
	return v.Validate(ctx, values)
}
