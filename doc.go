// Package formskema is a reactive, path-addressable state engine for form data.
//
// A Store holds a value tree (nested objects and possibly sparse arrays)
// together with per-field metadata: errors, touched flags and outstanding
// validation runs. Every piece of state is addressed by a canonical path such
// as "todos[0].title" (see package fieldpath).
//
// The pieces:
//
//   - Store: GetValue/SetValue, error and touched metadata, fine-grained
//     subscriptions (Subscribe, Track, Batch).
//   - Validation scheduling: a per-field behaviour (OnChange, OnBlur,
//     OnSubmit) decides whether a change or blur validates now, clears the
//     error, or waits. Overlapping async runs are sequence-numbered so only
//     the latest result is applied.
//   - Arrays: Store.Array returns a handle whose operations move the errors,
//     touched flags and item keys of every nested field along with the data.
//   - Scope: a comparable view of a sub-tree that behaves like its own form.
//   - Submission: Submit validates, focuses the first invalid field, calls a
//     Transport and merges a field-error payload returned by the server.
//
// Typical usage:
//
//	s := formskema.New(defaults, validator)
//	s.SetValue("todos[0].title", "buy milk")
//	s.Blur("todos[0].title")
//	res, err := s.Submit(ctx, transport)
//
// Validation failures are data (FieldErrors), never Go errors. A Go error from a
// Validator means it could not run at all.
package formskema
