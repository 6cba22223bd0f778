package rules

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/reoring/formskema"
	"github.com/reoring/formskema/fieldpath"
)

// Schema binds rules to field patterns and implements formskema.Validator
// and formskema.FieldValidator.
type Schema struct {
	fields []binding
	limit  int
}

type binding struct {
	pat   pattern
	rules Rule
}

var (
	_ formskema.Validator      = (*Schema)(nil)
	_ formskema.FieldValidator = (*Schema)(nil)
)

// New returns an empty Schema. Fields are checked with up to 8 rules running
// at once; see Concurrency.
func New() *Schema { return &Schema{limit: 8} }

// Field attaches rules to pattern. `[]` in pattern matches every present slot
// of the array before it. A malformed pattern panics.
func (s *Schema) Field(pattern string, rules ...Rule) *Schema {
	s.fields = append(s.fields, binding{pat: mustPattern(pattern), rules: And(rules...)})
	return s
}

// Concurrency limits how many fields are checked at once. n <= 0 removes the
// limit.
func (s *Schema) Concurrency(n int) *Schema {
	s.limit = n
	return s
}

type job struct {
	path  fieldpath.Path
	rules Rule
}

// Issues checks every field and returns the issues in declaration order.
// The error is non-nil only when ctx ends first.
func (s *Schema) Issues(ctx context.Context, values formskema.Snapshot) (formskema.Issues, error) {
	var jobs []job
	for _, b := range s.fields {
		for _, p := range b.pat.expand(values.Tree()) {
			jobs = append(jobs, job{path: p, rules: b.rules})
		}
	}
	return s.run(ctx, values, jobs)
}

func (s *Schema) run(ctx context.Context, values formskema.Snapshot, jobs []job) (formskema.Issues, error) {
	results := make([][]formskema.Issue, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, ok := fieldpath.Lookup(values.Tree(), j.path)
			results[i] = j.rules(gctx, Field{Path: j.path.String(), Value: v, Present: ok, Values: values})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out formskema.Issues
	for _, r := range results {
		out = formskema.AppendIssues(out, r...)
	}
	return out, nil
}

// Validate implements formskema.Validator.
func (s *Schema) Validate(ctx context.Context, values formskema.Snapshot) (formskema.Result, error) {
	iss, err := s.Issues(ctx, values)
	if err != nil {
		return formskema.Result{}, err
	}
	return formskema.Result{Data: values.Tree(), Errors: iss.FieldErrors()}, nil
}

// ValidateField implements formskema.FieldValidator. It runs the fields whose
// pattern matches path or one of its ancestors, so array rules that report at
// their elements are included, and returns the first message at path.
func (s *Schema) ValidateField(ctx context.Context, values formskema.Snapshot, path string) (string, error) {
	target, err := fieldpath.Parse(path)
	if err != nil {
		return "", err
	}
	var jobs []job
	for _, b := range s.fields {
		for n := len(target); n >= 0; n-- {
			if b.pat.match(target[:n]) {
				jobs = append(jobs, job{path: target[:n], rules: b.rules})
				break
			}
		}
	}
	iss, err := s.run(ctx, values, jobs)
	if err != nil {
		return "", err
	}
	want := target.String()
	return iss.FieldErrors()[want], nil
}

// pattern is a path split at its wildcards: parts[0] [] parts[1] [] ...
type pattern struct {
	raw   string
	parts []fieldpath.Path
}

func mustPattern(raw string) pattern {
	pieces := strings.Split(raw, "[]")
	p := pattern{raw: raw, parts: make([]fieldpath.Path, len(pieces))}
	for i, piece := range pieces {
		if i > 0 && piece != "" {
			switch piece[0] {
			case '.':
				piece = piece[1:]
			case '[':
			default:
				panic(fmt.Errorf("%w: pattern %q: expected '.' or '[' after []", fieldpath.ErrMalformed, raw))
			}
		}
		parsed, err := fieldpath.Parse(piece)
		if err != nil {
			panic(fmt.Errorf("pattern %q: %w", raw, err))
		}
		p.parts[i] = parsed
	}
	return p
}

// expand resolves the wildcards against tree. Only present slots are
// visited; paths without wildcards are returned even when absent.
func (p pattern) expand(tree any) []fieldpath.Path {
	var out []fieldpath.Path
	p.walk(tree, nil, 0, &out)
	return out
}

func (p pattern) walk(tree any, cur fieldpath.Path, k int, out *[]fieldpath.Path) {
	cur = cur.Append(p.parts[k]...)
	if k == len(p.parts)-1 {
		*out = append(*out, cur)
		return
	}
	arr, _ := fieldpath.Get(tree, cur).([]any)
	for i, e := range arr {
		if fieldpath.IsHole(e) {
			continue
		}
		p.walk(tree, cur.Append(fieldpath.Index(i)), k+1, out)
	}
}

// match reports whether concrete is one of the paths p can expand to.
func (p pattern) match(concrete fieldpath.Path) bool {
	rest := concrete
	for k, part := range p.parts {
		if !rest.HasPrefix(part) {
			return false
		}
		rest = rest[len(part):]
		if k == len(p.parts)-1 {
			return len(rest) == 0
		}
		if len(rest) == 0 || !rest[0].IsIndex() {
			return false
		}
		rest = rest[1:]
	}
	return false
}

func (p pattern) String() string { return p.raw }
