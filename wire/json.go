package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/reoring/formskema/fieldpath"
)

// ErrDuplicateKey reports an object that names the same key twice. Either
// occurrence could be the one a reader keeps, so such documents are rejected.
var ErrDuplicateKey = errors.New("wire: duplicate object key")

// Tree is a decoded value tree plus the canonical paths of its leaves in the
// order they appeared in the input.
type Tree struct {
	Value any
	Order []string
}

// DecodeJSON decodes data into a value tree. Numbers become float64. Unlike
// unmarshalling into map[string]any, the declaration order of every leaf is
// kept in Order.
func DecodeJSON(data []byte) (Tree, error) {
	return DecodeJSONReader(bytes.NewReader(data))
}

// DecodeJSONReader is DecodeJSON over a reader.
func DecodeJSONReader(r io.Reader) (Tree, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return Tree{}, err
	}
	var order []string
	v, err := decodeValue(dec, tok, nil, &order)
	if err != nil {
		return Tree{}, err
	}
	return Tree{Value: v, Order: order}, nil
}

func decodeValue(dec *json.Decoder, tok json.Token, cur fieldpath.Path, order *[]string) (any, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec, cur, order)
		case '[':
			return decodeArray(dec, cur, order)
		}
		return nil, fmt.Errorf("wire: unexpected delimiter %q", rune(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		*order = append(*order, cur.String())
		return f, nil
	case float64, string, bool, nil:
		*order = append(*order, cur.String())
		return v, nil
	}
	return nil, fmt.Errorf("wire: unexpected token %T", tok)
}

func decodeObject(dec *json.Decoder, cur fieldpath.Path, order *[]string) (any, error) {
	m := make(map[string]any)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			if len(m) == 0 {
				*order = append(*order, cur.String())
			}
			return m, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("wire: expected object key, got %T", tok)
		}
		if _, dup := m[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, cur.Append(fieldpath.Key(key)))
		}
		vt, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		v, err := decodeValue(dec, vt, cur.Append(fieldpath.Key(key)), order)
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
}

func decodeArray(dec *json.Decoder, cur fieldpath.Path, order *[]string) (any, error) {
	arr := []any{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if d, ok := tok.(json.Delim); ok && d == ']' {
			if len(arr) == 0 {
				*order = append(*order, cur.String())
			}
			return arr, nil
		}
		v, err := decodeValue(dec, tok, cur.Append(fieldpath.Index(len(arr))), order)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Marshal encodes a value tree as JSON. Holes are written as null.
func Marshal(tree any) ([]byte, error) {
	return json.Marshal(fillHoles(tree))
}

// Bind decodes a value tree into dst (a pointer) through its JSON form.
func Bind(tree any, dst any) error {
	data, err := Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// TreeOf converts a typed value (struct, map, slice) into a value tree,
// keeping the declaration order of struct fields.
func TreeOf(v any) (Tree, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Tree{}, err
	}
	return DecodeJSON(data)
}

func fillHoles(v any) any {
	switch c := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, e := range c {
			out[k] = fillHoles(e)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, e := range c {
			out[i] = fillHoles(e)
		}
		return out
	}
	if fieldpath.IsHole(v) {
		return nil
	}
	return v
}
