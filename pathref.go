package formskema

import (
	"fmt"

	"github.com/reoring/formskema/fieldpath"
)

// PathRef builds field paths in a chain-safe way and creates Issues at them.
//
//	formskema.At("todos").Index(2).Field("title").Issue(formskema.CodeRequired, "Required")
type PathRef struct {
	p fieldpath.Path
}

// Root is the PathRef of the whole form.
func Root() PathRef { return PathRef{} }

// At parses path into a PathRef. Malformed paths panic with *MisuseError.
func At(path string) PathRef { return PathRef{p: parsePath("At", path)} }

func (r PathRef) Field(name string) PathRef {
	if name == "" {
		return r
	}
	return PathRef{p: r.p.Append(fieldpath.Key(name))}
}

func (r PathRef) Index(i int) PathRef { return PathRef{p: r.p.Append(fieldpath.Index(i))} }

// String returns the canonical path.
func (r PathRef) String() string { return r.p.String() }

// Issue creates an Issue at r. kv are alternating param names and values.
func (r PathRef) Issue(code, msg string, kv ...any) Issue {
	var m map[string]any
	if len(kv) > 1 {
		m = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			m[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	return Issue{Path: r.String(), Code: code, Message: msg, Params: m}
}
