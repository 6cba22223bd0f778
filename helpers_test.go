package formskema_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reoring/formskema"
)

// requireNonEmpty reports "Required" for each listed path that does not hold
// a non-empty string, and counts its calls.
type requireNonEmpty struct {
	paths []string

	mu         sync.Mutex
	fieldCalls map[string]int
	formCalls  int
}

func newRequired(paths ...string) *requireNonEmpty {
	return &requireNonEmpty{paths: paths, fieldCalls: map[string]int{}}
}

func (v *requireNonEmpty) check(snap formskema.Snapshot, path string) string {
	for _, p := range v.paths {
		if p != path {
			continue
		}
		if s, _ := snap.Get(path).(string); s == "" {
			return "Required"
		}
	}
	return ""
}

func (v *requireNonEmpty) Validate(_ context.Context, snap formskema.Snapshot) (formskema.Result, error) {
	v.mu.Lock()
	v.formCalls++
	v.mu.Unlock()
	errs := formskema.FieldErrors{}
	for _, p := range v.paths {
		if msg := v.check(snap, p); msg != "" {
			errs[p] = msg
		}
	}
	return formskema.Result{Data: snap.Tree(), Errors: errs}, nil
}

func (v *requireNonEmpty) ValidateField(_ context.Context, snap formskema.Snapshot, path string) (string, error) {
	v.mu.Lock()
	v.fieldCalls[path]++
	v.mu.Unlock()
	return v.check(snap, path), nil
}

func (v *requireNonEmpty) calls(path string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fieldCalls[path]
}

// gatedField blocks each single-field run until the gate for the value being
// validated is released. Values shorter than three characters are too short.
type gatedField struct {
	started chan string
	mu      sync.Mutex
	gates   map[string]chan struct{}
}

func newGatedField(values ...string) *gatedField {
	g := &gatedField{started: make(chan string, len(values)), gates: map[string]chan struct{}{}}
	for _, v := range values {
		g.gates[v] = make(chan struct{})
	}
	return g
}

func (g *gatedField) release(v string) { close(g.gates[v]) }

func (g *gatedField) Validate(context.Context, formskema.Snapshot) (formskema.Result, error) {
	return formskema.Result{}, nil
}

func (g *gatedField) ValidateField(ctx context.Context, snap formskema.Snapshot, path string) (string, error) {
	v, _ := snap.Get(path).(string)
	g.started <- v
	select {
	case <-g.gates[v]:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if len(v) < 3 {
		return "too short", nil
	}
	return "", nil
}

// gatedForm blocks whole-form runs until released and returns fixed errors.
type gatedForm struct {
	started chan struct{}
	release chan struct{}
	errs    formskema.FieldErrors
}

func newGatedForm(errs formskema.FieldErrors) *gatedForm {
	return &gatedForm{started: make(chan struct{}, 1), release: make(chan struct{}), errs: errs}
}

func (g *gatedForm) Validate(_ context.Context, snap formskema.Snapshot) (formskema.Result, error) {
	g.started <- struct{}{}
	<-g.release
	return formskema.Result{Data: snap.Tree(), Errors: g.errs.Clone()}, nil
}

func (g *gatedForm) ValidateField(context.Context, formskema.Snapshot, string) (string, error) {
	return "", nil
}

var errDown = errors.New("dependency down")

func requireMisuse(t *testing.T, fn func()) *formskema.MisuseError {
	t.Helper()
	var got *formskema.MisuseError
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "expected a misuse panic")
			me, ok := r.(*formskema.MisuseError)
			require.True(t, ok, "panic value %T is not *MisuseError", r)
			got = me
		}()
		fn()
	}()
	return got
}

func inline(b formskema.ValidationBehaviorConfig) formskema.Options {
	return formskema.Options{Execution: formskema.ExecInline, ValidationBehavior: b}
}
