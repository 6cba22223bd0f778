package formskema

import (
	"reflect"
	"strings"
)

// ResolveStructKey applies the repository-wide rule to resolve a struct field's
// path key. Priority: form:"name" > json tag name > field name; "-" disables
// the field.
func ResolveStructKey(sf reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		t, ok := sf.Tag.Lookup(tag)
		if !ok {
			continue
		}
		if t == "-" {
			return "-"
		}
		if i := strings.IndexByte(t, ','); i >= 0 {
			t = t[:i]
		}
		if t != "" {
			return t
		}
	}
	return sf.Name
}
