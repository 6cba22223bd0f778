// Package middleware validates posted forms on the server and answers failures
// with the field-error payload a formskema.Store merges back into its state.
package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/reoring/formskema"
	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/wire"
)

// DefaultMaxMemory bounds the multipart parts kept in memory.
const DefaultMaxMemory = 32 << 20

// Config tunes ValidateForm. The zero value is usable.
type Config struct {
	// FormIDField is the posted field naming the form; it is echoed in the
	// payload so the page can route errors. Default "formId".
	FormIDField string
	// Repopulate echoes the submitted values (files excluded) in the payload.
	Repopulate bool
	MaxMemory  int64
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.FormIDField == "" {
		c.FormIDField = "formId"
	}
	if c.MaxMemory <= 0 {
		c.MaxMemory = DefaultMaxMemory
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// DefaultConfig returns the recommended settings for HTML form endpoints.
func DefaultConfig() Config {
	return Config{Repopulate: true}.withDefaults()
}

// ParseRequest reads the request body into a value tree. JSON, multipart and
// urlencoded bodies are supported; anything else is read as urlencoded.
func ParseRequest(r *http.Request, maxMemory int64) (any, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		t, err := wire.DecodeJSONReader(r.Body)
		if err != nil {
			return nil, err
		}
		return t.Value, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, err
		}
		return wire.DecodeMultipart(r.MultipartForm)
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return wire.DecodeForm(r.PostForm)
	}
}

// Failure builds the payload for an invalid result.
func Failure(res formskema.Result, values formskema.Snapshot, formID string, repopulate bool) *wire.Payload {
	p := &wire.Payload{FieldErrors: res.Errors, FormID: formID}
	if repopulate {
		p.RepopulateFields = withoutFiles(values)
	}
	return p
}

func withoutFiles(values formskema.Snapshot) map[string]any {
	out := map[string]any{}
	for _, e := range values.Entries() {
		if _, isFile := e.Value.(wire.File); isFile {
			continue
		}
		out[e.Path] = e.Value
	}
	return out
}

type ctxKeyResult struct{}

// ContextWithResult attaches a successful validation to ctx.
func ContextWithResult(ctx context.Context, res formskema.Result) context.Context {
	return context.WithValue(ctx, ctxKeyResult{}, res)
}

// ResultFromContext retrieves the result stored by ValidateForm.
func ResultFromContext(ctx context.Context) (formskema.Result, bool) {
	res, ok := ctx.Value(ctxKeyResult{}).(formskema.Result)
	return res, ok
}

// Outcome is what Check decided for one request.
type Outcome struct {
	Result  formskema.Result
	Values  formskema.Snapshot
	FormID  string
	Payload *wire.Payload // non-nil when the form is invalid
}

// ErrBadRequest wraps body parsing failures.
var ErrBadRequest = errors.New("middleware: malformed form body")

// Check parses r and validates it with v. A malformed body wraps
// ErrBadRequest; a validator failure is returned as-is.
func Check(r *http.Request, v formskema.Validator, cfg Config) (Outcome, error) {
	cfg = cfg.withDefaults()
	tree, err := ParseRequest(r, cfg.MaxMemory)
	if err != nil {
		return Outcome{}, errors.Join(ErrBadRequest, err)
	}
	values := formskema.SnapshotOf(tree)
	formID, _ := values.Get(cfg.FormIDField).(string)
	if formID != "" {
		values = formskema.SnapshotOf(fieldpath.Unset(tree, fieldpath.Path{fieldpath.Key(cfg.FormIDField)}))
	}
	out := Outcome{Values: values, FormID: formID, Result: formskema.Result{Data: values.Tree()}}
	if v == nil {
		return out, nil
	}
	res, err := v.Validate(r.Context(), values)
	if err != nil {
		return Outcome{}, err
	}
	out.Result = res
	if !res.Valid() {
		out.Payload = Failure(res, values, formID, cfg.Repopulate)
	}
	return out, nil
}

// ValidateForm validates every request body with v before next runs. Invalid
// forms get a 422 field-error payload, malformed bodies 400 and validator
// failures 503. On success the Result is available via ResultFromContext.
func ValidateForm(v formskema.Validator, cfg Config) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			out, err := Check(r, v, cfg)
			switch {
			case errors.Is(err, ErrBadRequest):
				cfg.Logger.Debug("rejecting malformed form", "path", r.URL.Path, "err", err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			case err != nil:
				cfg.Logger.Warn("validator failed", "path", r.URL.Path, "err", err)
				http.Error(w, "validation unavailable", http.StatusServiceUnavailable)
				return
			case out.Payload != nil:
				if err := wire.Write(w, out.Payload); err != nil {
					cfg.Logger.Warn("writing field errors", "err", err)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithResult(r.Context(), out.Result)))
		})
	}
}
