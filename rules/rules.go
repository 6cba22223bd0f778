// Package rules is a rule-based formskema.Validator. Rules attach to field
// patterns where `[]` matches every present slot of an array:
//
//	v := rules.New().
//		Field("email", rules.Required(), rules.Pattern(emailRE)).
//		Field("todos", rules.MinItems(1)).
//		Field("todos[].title", rules.Required(), rules.MaxLength(80))
//	store := formskema.New(defaults, v)
package rules

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/reoring/formskema"
	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/i18n"
)

// Field is the value a rule checks.
type Field struct {
	Path    string // Concrete canonical path, wildcards resolved.
	Value   any
	Present bool
	Values  formskema.Snapshot
}

// Issue creates an issue at f with the catalogue message for code.
func (f Field) Issue(code string, kv ...any) formskema.Issue {
	iss := formskema.At(f.Path).Issue(code, "", kv...)
	iss.Message = i18n.T(code, stringParams(iss.Params))
	return iss
}

// Rule checks one field and reports its issues.
type Rule func(ctx context.Context, f Field) []formskema.Issue

func stringParams(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func one(iss formskema.Issue) []formskema.Issue { return []formskema.Issue{iss} }

// isEmpty reports the values Required rejects: absent, nil, blank strings and
// empty containers.
func isEmpty(f Field) bool {
	if !f.Present || f.Value == nil {
		return true
	}
	switch v := f.Value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		for _, e := range v {
			if !fieldpath.IsHole(e) {
				return false
			}
		}
		return true
	case map[string]any:
		return len(v) == 0
	}
	return false
}

// Required rejects absent, nil and blank values.
func Required() Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		if isEmpty(f) {
			return one(f.Issue(formskema.CodeRequired))
		}
		return nil
	}
}

// MinLength requires strings of at least n characters. Empty values pass; pair
// with Required.
func MinLength(n int) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		s, ok := f.Value.(string)
		if !ok || s == "" {
			return nil
		}
		if got := utf8.RuneCountInString(s); got < n {
			return one(f.Issue(formskema.CodeTooShort, "min", n, "got", got))
		}
		return nil
	}
}

// MaxLength limits strings to n characters.
func MaxLength(n int) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		s, ok := f.Value.(string)
		if !ok {
			return nil
		}
		if got := utf8.RuneCountInString(s); got > n {
			return one(f.Issue(formskema.CodeTooLong, "max", n, "got", got))
		}
		return nil
	}
}

// Pattern requires non-empty strings to match re.
func Pattern(re *regexp.Regexp) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		s, ok := f.Value.(string)
		if !ok || s == "" {
			return nil
		}
		if !re.MatchString(s) {
			return one(f.Issue(formskema.CodePattern, "pattern", re.String()))
		}
		return nil
	}
}

// Min requires numbers (or numeric strings, as posted by HTML forms) to be at
// least min.
func Min(min float64) Rule {
	return numeric(func(f Field, n float64) []formskema.Issue {
		if n < min {
			return one(f.Issue(formskema.CodeTooSmall, "min", min, "got", n))
		}
		return nil
	})
}

// Max requires numbers to be at most max.
func Max(max float64) Rule {
	return numeric(func(f Field, n float64) []formskema.Issue {
		if n > max {
			return one(f.Issue(formskema.CodeTooBig, "max", max, "got", n))
		}
		return nil
	})
}

func numeric(check func(Field, float64) []formskema.Issue) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		if isEmpty(f) {
			return nil
		}
		n, ok := toNumber(f.Value)
		if !ok {
			return one(f.Issue(formskema.CodeInvalidType, "expected", "number"))
		}
		return check(f, n)
	}
}

func toNumber(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return n, err == nil
	}
	return asNumber(v)
}

// OneOf requires the value to equal one of allowed. Empty values pass.
func OneOf(allowed ...any) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		if isEmpty(f) {
			return nil
		}
		for _, a := range allowed {
			if compare(f.Value, Eq, a) {
				return nil
			}
		}
		names := make([]string, len(allowed))
		for i, a := range allowed {
			names[i] = fmt.Sprint(a)
		}
		return one(f.Issue(formskema.CodeInvalidEnum, "allowed", strings.Join(names, ", ")))
	}
}

// MinItems requires an array with at least n present slots. A missing array
// counts as empty.
func MinItems(n int) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		if got := presentItems(f.Value); got < n {
			return one(f.Issue(formskema.CodeTooFewItems, "min", n, "got", got))
		}
		return nil
	}
}

// MaxItems limits an array to n present slots.
func MaxItems(n int) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		if got := presentItems(f.Value); got > n {
			return one(f.Issue(formskema.CodeTooManyItems, "max", n, "got", got))
		}
		return nil
	}
}

func presentItems(v any) int {
	arr, _ := v.([]any)
	n := 0
	for _, e := range arr {
		if !fieldpath.IsHole(e) {
			n++
		}
	}
	return n
}

// EqualTo requires the value to equal the value at the absolute path other,
// e.g. a password confirmation.
func EqualTo(other string) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		want, _ := f.Values.Lookup(other)
		if !reflect.DeepEqual(f.Value, want) {
			return one(f.Issue(formskema.CodeMismatch, "other", other))
		}
		return nil
	}
}

// UniqueBy requires the elements of an array to have distinct values at the
// relative path keyPath ("" compares the elements themselves). Each duplicate
// is reported at its own key path.
func UniqueBy(keyPath string) Rule {
	kp := fieldpath.MustParse(keyPath)
	return func(_ context.Context, f Field) []formskema.Issue {
		arr, ok := f.Value.([]any)
		if !ok {
			return nil
		}
		seen := map[string]int{}
		var out []formskema.Issue
		for i, elem := range arr {
			if fieldpath.IsHole(elem) {
				continue
			}
			kv, ok := fieldpath.Lookup(elem, kp)
			if !ok {
				continue
			}
			key := fmt.Sprint(kv)
			if j, dup := seen[key]; dup {
				at := Field{Path: fieldpath.Merge(f.Path, i, kp), Value: kv, Present: true, Values: f.Values}
				out = append(out, at.Issue(formskema.CodeUniqueness, "first", j, "dup", i, "key", key))
			} else {
				seen[key] = i
			}
		}
		return out
	}
}

// Custom reports code (with msg, or the catalogue message when msg is empty)
// when ok returns false.
func Custom(code, msg string, ok func(f Field) bool) Rule {
	return func(_ context.Context, f Field) []formskema.Issue {
		if ok(f) {
			return nil
		}
		iss := f.Issue(code)
		if msg != "" {
			iss.Message = msg
		}
		iss.Rule = "custom"
		return one(iss)
	}
}

// Async runs a check that may call out to a service, for example a username
// availability lookup. check returns a message ("" when valid). Concurrent
// checks of the same path and value share one call. A check error is reported
// as CodeDependencyUnavailable.
func Async(name string, check func(ctx context.Context, f Field) (string, error)) Rule {
	var group singleflight.Group
	return func(ctx context.Context, f Field) []formskema.Issue {
		key := f.Path + "\x00" + fmt.Sprint(f.Value)
		v, err, _ := group.Do(key, func() (any, error) { return check(ctx, f) })
		if err != nil {
			iss := f.Issue(formskema.CodeDependencyUnavailable)
			iss.Cause, iss.Rule = err, name
			return one(iss)
		}
		if msg, _ := v.(string); msg != "" {
			iss := f.Issue(formskema.CodeBusinessRule)
			iss.Message, iss.Rule = msg, name
			return one(iss)
		}
		return nil
	}
}

// ---------- Rule combinators ----------

// And executes all rules and concatenates Issues.
func And(rules ...Rule) Rule {
	return func(ctx context.Context, f Field) []formskema.Issue {
		var out []formskema.Issue
		for _, r := range rules {
			if r == nil {
				continue
			}
			out = append(out, r(ctx, f)...)
		}
		return out
	}
}

// Or succeeds if any rule returns no Issues. When all fail, the branch with
// the fewest issues is returned.
func Or(rules ...Rule) Rule {
	return func(ctx context.Context, f Field) []formskema.Issue {
		var best []formskema.Issue
		bestSet := false
		for _, r := range rules {
			if r == nil {
				continue
			}
			iss := r(ctx, f)
			if len(iss) == 0 {
				return nil
			}
			if !bestSet || len(iss) < len(best) {
				best = iss
				bestSet = true
			}
		}
		return best
	}
}

// When runs rules only when cond holds for the form's values.
func When(cond Conditional, rules ...Rule) Rule {
	then := And(rules...)
	return func(ctx context.Context, f Field) []formskema.Issue {
		if !cond.eval(f.Values) {
			return nil
		}
		return then(ctx, f)
	}
}
