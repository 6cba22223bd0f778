package wire

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/reoring/formskema/fieldpath"
)

// File is a file leaf in a value tree.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// EncodeForm flattens tree into urlencoded form values keyed by canonical
// path. Files and empty containers are left out.
func EncodeForm(tree any) url.Values {
	out := url.Values{}
	for _, e := range fieldpath.Flatten(tree) {
		s, ok := formatLeaf(e.Value)
		if !ok {
			continue
		}
		out.Add(e.Path, s)
	}
	return out
}

// DecodeForm rebuilds a tree from form values. A name posted more than once
// becomes an array of its values.
func DecodeForm(values url.Values) (any, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]fieldpath.Entry, 0, len(keys))
	for _, k := range keys {
		vs := values[k]
		switch len(vs) {
		case 0:
			continue
		case 1:
			entries = append(entries, fieldpath.Entry{Path: k, Value: vs[0]})
		default:
			arr := make([]any, len(vs))
			for i, v := range vs {
				arr[i] = v
			}
			entries = append(entries, fieldpath.Entry{Path: k, Value: arr})
		}
	}
	tree, err := fieldpath.FromFlatEntries(entries)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

// EncodeMultipart writes tree as multipart/form-data to w and returns the
// content type including the boundary.
func EncodeMultipart(w io.Writer, tree any) (string, error) {
	mw := multipart.NewWriter(w)
	for _, e := range fieldpath.Flatten(tree) {
		if f, ok := asFile(e.Value); ok {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, e.Path, f.Name))
			ct := f.ContentType
			if ct == "" {
				ct = "application/octet-stream"
			}
			h.Set("Content-Type", ct)
			part, err := mw.CreatePart(h)
			if err != nil {
				return "", err
			}
			if _, err := part.Write(f.Data); err != nil {
				return "", err
			}
			continue
		}
		s, ok := formatLeaf(e.Value)
		if !ok {
			continue
		}
		if err := mw.WriteField(e.Path, s); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

// DecodeMultipart rebuilds a tree from a parsed multipart form, reading file
// parts into File leaves.
func DecodeMultipart(form *multipart.Form) (any, error) {
	tree, err := DecodeForm(url.Values(form.Value))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(form.File))
	for k := range form.File {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := fieldpath.Parse(name)
		if err != nil {
			return nil, err
		}
		var files []any
		for _, fh := range form.File[name] {
			f, err := readFileHeader(fh)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
		switch len(files) {
		case 0:
		case 1:
			tree = fieldpath.Set(tree, p, files[0])
		default:
			tree = fieldpath.Set(tree, p, files)
		}
	}
	return tree, nil
}

func readFileHeader(fh *multipart.FileHeader) (File, error) {
	r, err := fh.Open()
	if err != nil {
		return File{}, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, err
	}
	return File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

func asFile(v any) (File, bool) {
	switch f := v.(type) {
	case File:
		return f, true
	case *File:
		if f != nil {
			return *f, true
		}
	}
	return File{}, false
}

func formatLeaf(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	case File, *File, map[string]any, []any:
		return "", false
	case fmt.Stringer:
		return t.String(), true
	}
	return fmt.Sprint(v), true
}
