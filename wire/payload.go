// Package wire holds the serialized shapes that cross a form's boundary: the
// field-error payload used for server round-trips, urlencoded and multipart
// encodings of a value tree, and JSON decoding of trees that remembers the
// order fields were declared in.
package wire

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	json "github.com/goccy/go-json"
)

// StatusCode is the HTTP status that carries a Payload by convention.
const StatusCode = http.StatusUnprocessableEntity

// ErrNotPayload reports a body that is not a field-error payload.
var ErrNotPayload = errors.New("wire: body is not a field-error payload")

// Payload is the field-error response shape:
//
//	{"fieldErrors": {"todos[0].title": "Required"}, "formId": "f1"}
//
// It implements error so a transport can hand it back to the submitter as-is.
type Payload struct {
	FieldErrors      map[string]string `json:"fieldErrors"`
	FormID           string            `json:"formId,omitempty"`
	RepopulateFields any               `json:"repopulateFields,omitempty"`
}

// Error summarizes the first few field errors in path order.
func (p *Payload) Error() string {
	if p == nil || len(p.FieldErrors) == 0 {
		return "wire: empty field-error payload"
	}
	paths := make([]string, 0, len(p.FieldErrors))
	for k := range p.FieldErrors {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	const maxShown = 3
	msg := fmt.Sprintf("wire: %d field error(s): %s: %s", len(paths), paths[0], p.FieldErrors[paths[0]])
	for i := 1; i < len(paths) && i < maxShown; i++ {
		msg += fmt.Sprintf("; %s: %s", paths[i], p.FieldErrors[paths[i]])
	}
	return msg
}

// AsPayload extracts a *Payload from err using errors.As.
func AsPayload(err error) (*Payload, bool) {
	if err == nil {
		return nil, false
	}
	var p *Payload
	if errors.As(err, &p) && p != nil {
		return p, true
	}
	return nil, false
}

// Encode renders p as JSON.
func Encode(p *Payload) ([]byte, error) {
	out := *p
	if out.FieldErrors == nil {
		out.FieldErrors = map[string]string{}
	}
	return json.Marshal(&out)
}

// Decode parses a payload. Bodies without a fieldErrors object are rejected
// with ErrNotPayload.
func Decode(data []byte) (*Payload, error) {
	var raw struct {
		FieldErrors      *map[string]string `json:"fieldErrors"`
		FormID           string             `json:"formId"`
		RepopulateFields any                `json:"repopulateFields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPayload, err)
	}
	if raw.FieldErrors == nil {
		return nil, ErrNotPayload
	}
	return &Payload{FieldErrors: *raw.FieldErrors, FormID: raw.FormID, RepopulateFields: raw.RepopulateFields}, nil
}

// Write answers an HTTP request with p and StatusCode.
func Write(w http.ResponseWriter, p *Payload) error {
	body, err := Encode(p)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(StatusCode)
	_, err = w.Write(body)
	return err
}

// StatusError is a non-2xx response that did not carry a Payload.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wire: unexpected status %d", e.StatusCode)
}

// FromResponse interprets a submission response: nil for 2xx and 3xx, a
// *Payload for a 422 carrying field errors, a *StatusError otherwise. The body
// is consumed but not closed.
func FromResponse(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == StatusCode {
		if p, err := Decode(body); err == nil {
			return p
		}
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: body}
}
