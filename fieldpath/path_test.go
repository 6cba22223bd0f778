package fieldpath_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/reoring/formskema/fieldpath"
)

func TestParse_RoundTripCanonical(t *testing.T) {
	for _, s := range []string{
		"",
		"name",
		"todos[0]",
		"todos[0].title",
		"todos[12].notes[3].text",
		"[0]",
		"[0][1].a",
		"a.b.c",
		"matrix[1][2]",
	} {
		p, err := fieldpath.Parse(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got := p.String(); got != s {
			t.Fatalf("round trip %q: got %q", s, got)
		}
	}
}

func TestParse_DottedNumericIsIndex(t *testing.T) {
	a := fieldpath.MustParse("todos.0.title")
	b := fieldpath.MustParse("todos[0].title")
	if !a.Equal(b) {
		t.Fatalf("expected %v == %v", a, b)
	}
	if got := a.String(); got != "todos[0].title" {
		t.Fatalf("canonical form: %q", got)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, s := range []string{"a..b", "a.", ".a", "a[", "a[x]", "a[-1]", "a[01]", "a]", "a[0]b", "a.[0]"} {
		if _, err := fieldpath.Parse(s); !errors.Is(err, fieldpath.ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", s, err)
		}
	}
}

func TestMerge(t *testing.T) {
	got := fieldpath.Merge("todos", 2, nil, "", "notes[1]", fieldpath.Key("text"))
	if got != "todos[2].notes[1].text" {
		t.Fatalf("merge: %q", got)
	}
	if got := fieldpath.Merge("a.b", "[0]"); got != "a.b[0]" {
		t.Fatalf("merge index fragment: %q", got)
	}
	if got := fieldpath.Merge(nil, ""); got != "" {
		t.Fatalf("merge of nothing: %q", got)
	}
}

func TestMerge_PanicsOnUnsupportedFragment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	fieldpath.Merge("a", 1.5)
}

func TestCompareAndRelated(t *testing.T) {
	p := fieldpath.MustParse
	if fieldpath.Compare(p("todos[2].title"), p("todos[10].title")) >= 0 {
		t.Fatalf("indices must compare numerically")
	}
	if fieldpath.Compare(p("a"), p("a.b")) >= 0 {
		t.Fatalf("parent must sort before child")
	}
	if !fieldpath.Related(p("todos"), p("todos[1].title")) {
		t.Fatalf("ancestor must be related")
	}
	if fieldpath.Related(p("todos[0]"), p("todos[1]")) {
		t.Fatalf("siblings must not be related")
	}
	if !fieldpath.Related(p(""), p("anything")) {
		t.Fatalf("root is related to everything")
	}
}

func TestGetSet_StructuralSharing(t *testing.T) {
	other := map[string]any{"x": 1}
	tree := map[string]any{
		"user":  map[string]any{"name": "a"},
		"other": other,
	}
	out := fieldpath.Set(tree, fieldpath.MustParse("user.name"), "b")

	if got := fieldpath.Get(tree, fieldpath.MustParse("user.name")); got != "a" {
		t.Fatalf("input mutated: %v", got)
	}
	if got := fieldpath.Get(out, fieldpath.MustParse("user.name")); got != "b" {
		t.Fatalf("set failed: %v", got)
	}
	om := out.(map[string]any)["other"].(map[string]any)
	if reflect.ValueOf(om).Pointer() != reflect.ValueOf(other).Pointer() {
		t.Fatalf("unrelated branch was copied")
	}
}

func TestSet_AutoVivifiesBySegmentKind(t *testing.T) {
	out := fieldpath.Set(nil, fieldpath.MustParse("todos[2].title"), "x")
	arr, ok := out.(map[string]any)["todos"].([]any)
	if !ok {
		t.Fatalf("expected []any, got %T", out.(map[string]any)["todos"])
	}
	if len(arr) != 3 {
		t.Fatalf("len = %d", len(arr))
	}
	if !fieldpath.IsHole(arr[0]) || !fieldpath.IsHole(arr[1]) {
		t.Fatalf("gap must stay sparse: %v", arr)
	}
	if _, ok := fieldpath.Lookup(out, fieldpath.MustParse("todos[1]")); ok {
		t.Fatalf("hole must read as absent")
	}
	if v, ok := fieldpath.Lookup(out, fieldpath.MustParse("todos[2].title")); !ok || v != "x" {
		t.Fatalf("lookup: %v %v", v, ok)
	}
}

func TestLookup_MissingIsNotAnError(t *testing.T) {
	tree := map[string]any{"a": "leaf"}
	for _, s := range []string{"b", "a.b", "a[0]", "x[3].y"} {
		if v, ok := fieldpath.Lookup(tree, fieldpath.MustParse(s)); ok || v != nil {
			t.Fatalf("%s: expected absent, got %v", s, v)
		}
	}
}

func TestLookup_ExplicitNilIsPresent(t *testing.T) {
	tree := map[string]any{"items": []any{nil, fieldpath.Hole}}
	if _, ok := fieldpath.Lookup(tree, fieldpath.MustParse("items[0]")); !ok {
		t.Fatalf("explicit nil must be present")
	}
	if _, ok := fieldpath.Lookup(tree, fieldpath.MustParse("items[1]")); ok {
		t.Fatalf("hole must be absent")
	}
}

func TestUnset(t *testing.T) {
	tree := map[string]any{"a": map[string]any{"b": 1, "c": 2}, "l": []any{1, 2}}
	out := fieldpath.Unset(tree, fieldpath.MustParse("a.b"))
	if _, ok := fieldpath.Lookup(out, fieldpath.MustParse("a.b")); ok {
		t.Fatalf("key not deleted")
	}
	if _, ok := fieldpath.Lookup(tree, fieldpath.MustParse("a.b")); !ok {
		t.Fatalf("input mutated")
	}
	out = fieldpath.Unset(out, fieldpath.MustParse("l[0]"))
	l := out.(map[string]any)["l"].([]any)
	if len(l) != 2 || !fieldpath.IsHole(l[0]) {
		t.Fatalf("array slot must become a hole: %v", l)
	}
}

func TestFlatRoundTrip(t *testing.T) {
	tree := map[string]any{
		"name": "n",
		"todos": []any{
			map[string]any{"title": "a", "done": false},
			map[string]any{"title": "b", "tags": []any{}},
		},
		"meta": map[string]any{},
	}
	entries := fieldpath.Flatten(tree)
	want := []string{"meta", "name", "todos[0].done", "todos[0].title", "todos[1].tags", "todos[1].title"}
	if len(entries) != len(want) {
		t.Fatalf("entries: %v", entries)
	}
	for i, e := range entries {
		if e.Path != want[i] {
			t.Fatalf("entry %d: %q want %q", i, e.Path, want[i])
		}
	}
	back, err := fieldpath.FromFlatEntries(entries)
	if err != nil {
		t.Fatalf("from flat: %v", err)
	}
	if !reflect.DeepEqual(back, tree) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", back, tree)
	}
	if fm := fieldpath.ToFlatMap(tree); fm["todos[1].title"] != "b" {
		t.Fatalf("flat map: %v", fm)
	}
}

func TestFlatten_SkipsHoles(t *testing.T) {
	tree := []any{fieldpath.Hole, "x"}
	entries := fieldpath.Flatten(tree)
	if len(entries) != 1 || entries[0].Path != "[1]" {
		t.Fatalf("entries: %v", entries)
	}
}

func TestCheckSet_KeyIntoArrayConflicts(t *testing.T) {
	tree := map[string]any{"todos": []any{"a", map[string]any{"title": "b"}}}
	err := fieldpath.CheckSet(tree, fieldpath.MustParse("todos.note"))
	if !errors.Is(err, fieldpath.ErrTypeConflict) {
		t.Fatalf("want ErrTypeConflict, got %v", err)
	}
	for _, ok := range []string{"todos[0]", "todos[5].x", "todos[1].title", "todos[1].extra", "name.first", "todos"} {
		if err := fieldpath.CheckSet(tree, fieldpath.MustParse(ok)); err != nil {
			t.Fatalf("%s: unexpected %v", ok, err)
		}
	}
	if err := fieldpath.CheckSet([]any{}, fieldpath.MustParse("k")); !errors.Is(err, fieldpath.ErrTypeConflict) {
		t.Fatalf("root array by key: %v", err)
	}
}

func TestFlatRoundTrip_NumericKeysBecomeIndices(t *testing.T) {
	tree := map[string]any{"m": map[string]any{"0": "x", "2": "z"}}
	entries := fieldpath.Flatten(tree)
	if len(entries) != 2 || entries[0].Path != "m[0]" || entries[1].Path != "m[2]" {
		t.Fatalf("entries: %v", entries)
	}
	back, err := fieldpath.FromFlatEntries(entries)
	if err != nil {
		t.Fatalf("from flat: %v", err)
	}
	m, ok := back.(map[string]any)["m"].([]any)
	if !ok || len(m) != 3 || m[0] != "x" || !fieldpath.IsHole(m[1]) || m[2] != "z" {
		t.Fatalf("numeric keys must come back as a holey array: %#v", back)
	}
}
