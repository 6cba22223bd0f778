package formskema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType   = "invalid_type"
	CodeRequired      = "required"
	CodeTooSmall      = "too_small"
	CodeTooBig        = "too_big"
	CodeTooShort      = "too_short"
	CodeTooLong       = "too_long"
	CodePattern       = "pattern"
	CodeInvalidEnum   = "invalid_enum"
	CodeInvalidFormat = "invalid_format"
	CodeTooFewItems   = "too_few_items"
	CodeTooManyItems  = "too_many_items"
	CodeMismatch      = "mismatch"
	// Domain/Context passes (business semantics)
	CodeUniqueness   = "uniqueness"
	CodeBusinessRule = "business_rule"
	CodeConflict     = "conflict"
	// Dependency temporary/unavailable errors (an async check could not reach its service)
	CodeDependencyUnavailable = "dependency_unavailable"
)

// ErrValidationSuperseded is returned by ValidateAll, ValidateField and Submit
// when a later run (or a reset) made the result obsolete before it applied.
var ErrValidationSuperseded = errors.New("formskema: validation superseded by a newer run")

// Issue represents a single validation entry.
type Issue struct {
	Path    string // Canonical field path (for example: todos[2].title).
	Code    string // One of the codes listed above.
	Message string
	Cause   error // Optional: underlying error.
	// Params carries structured parameters (e.g., {"min":1, "max":10, "got":42})
	// for i18n.
	Params map[string]any
	// Rule optionally records the rule name that produced this issue.
	Rule string
}

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := min(n, maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. required at todos[0].title
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// FieldErrors folds issues into one message per path. The first issue for a
// path wins; an issue without a message falls back to its code.
func (iss Issues) FieldErrors() FieldErrors {
	out := make(FieldErrors, len(iss))
	for _, it := range iss {
		if _, ok := out[it.Path]; ok {
			continue
		}
		msg := it.Message
		if msg == "" {
			msg = it.Code
		}
		out[it.Path] = msg
	}
	return out
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	return append(dst, more...)
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// FieldErrors maps canonical paths to messages. A nil or empty map means valid.
type FieldErrors map[string]string

// Paths returns the paths carrying an error, sorted.
func (fe FieldErrors) Paths() []string {
	out := make([]string, 0, len(fe))
	for k := range fe {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone copies fe. The clone of nil is an empty map.
func (fe FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

// Error summarizes the first few errors in path order.
func (fe FieldErrors) Error() string {
	paths := fe.Paths()
	if len(paths) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	for i, p := range paths {
		if i == maxShown {
			fmt.Fprintf(b, "; ... (total %d)", len(paths))
			break
		}
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s: %s", p, fe[p])
	}
	return b.String()
}

// AsFieldErrors extracts FieldErrors from err. Issues are folded with
// Issues.FieldErrors.
func AsFieldErrors(err error) (FieldErrors, bool) {
	if err == nil {
		return nil, false
	}
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	if iss, ok := AsIssues(err); ok {
		return iss.FieldErrors(), true
	}
	return nil, false
}

// MisuseError is the panic value for programmer errors: malformed paths, array
// operations on non-arrays, negative indices.
type MisuseError struct {
	Op     string
	Path   string
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("formskema.%s(%q): %s", e.Op, e.Path, e.Reason)
}

func misuse(op, path, reason string) {
	panic(&MisuseError{Op: op, Path: path, Reason: reason})
}
