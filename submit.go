package formskema

import (
	"context"
	"errors"
	"math"
	"net/url"
	"sort"

	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/wire"
)

// SubmitState is the submission status of a form.
type SubmitState uint8

const (
	SubmitIdle SubmitState = iota
	SubmitValidating
	SubmitInvalid
	SubmitSubmitting
	SubmitSuccess
	SubmitFailed
)

func (s SubmitState) String() string {
	switch s {
	case SubmitValidating:
		return "validating"
	case SubmitInvalid:
		return "invalid"
	case SubmitSubmitting:
		return "submitting"
	case SubmitSuccess:
		return "success"
	case SubmitFailed:
		return "failed"
	}
	return "idle"
}

// Submission is what a Transport sends.
type Submission struct {
	// Data is the validator's output, or the raw values when it returned none.
	Data   any
	Values Snapshot
	FormID string
}

// Flat returns the values keyed by canonical path.
func (s Submission) Flat() map[string]any { return s.Values.Flat() }

// Form returns the values urlencoded by canonical path.
func (s Submission) Form() url.Values { return wire.EncodeForm(s.Values.Tree()) }

// JSON encodes Data.
func (s Submission) JSON() ([]byte, error) { return wire.Marshal(s.Data) }

// Decode binds Data into dst.
func (s Submission) Decode(dst any) error { return wire.Bind(s.Data, dst) }

// Transport delivers a valid form. Returning a *wire.Payload, FieldErrors or
// Issues (possibly wrapped) reports server-side field errors.
type Transport interface {
	Submit(ctx context.Context, sub Submission) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, sub Submission) error

func (f TransportFunc) Submit(ctx context.Context, sub Submission) error { return f(ctx, sub) }

// Focuser moves input focus to a field.
type Focuser interface {
	Focus(path string)
}

// FocusFunc adapts a function to Focuser.
type FocusFunc func(path string)

func (f FocusFunc) Focus(path string) { f(path) }

// SubmitResult reports how a submission ended.
type SubmitResult struct {
	State   SubmitState
	Errors  FieldErrors
	Focused string // Path that received focus, if any.
	Data    any
}

// SubmitState returns the current submission status.
func (s *Store) SubmitState() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitState
}

// SubmitCount returns how many times Submit was called since the last reset.
func (s *Store) SubmitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitCount
}

func (s *Store) setSubmitState(st SubmitState) {
	s.mu.Lock()
	s.submitState = st
	s.emitLocked("", nil, ChangeForm)
	s.mu.Unlock()
	s.flush()
}

// Submit validates the whole form. When it is invalid the first invalid field
// is focused and t is not called. Otherwise t is called exactly once; a
// field-error payload it returns for this form is merged into the errors.
//
// Validator and transport errors are returned as-is, with the result's State
// set to SubmitFailed. ErrValidationSuperseded means a reset or a newer
// submission overtook this one.
func (s *Store) Submit(ctx context.Context, t Transport) (SubmitResult, error) {
	s.mu.Lock()
	s.submitted = true
	s.submitCount++
	s.submitState = SubmitValidating
	s.emitLocked("", nil, ChangeForm)
	s.mu.Unlock()
	s.flush()
	s.log.Debug("submit: validating")

	out, err := s.validateForm(ctx)
	switch {
	case errors.Is(err, ErrValidationSuperseded):
		return SubmitResult{State: s.SubmitState()}, err
	case err != nil:
		s.setSubmitState(SubmitFailed)
		return SubmitResult{State: SubmitFailed}, err
	}
	if !out.valid {
		s.setSubmitState(SubmitInvalid)
		errs := s.Errors()
		focused := s.focusFirstInvalid(errs)
		s.log.Debug("submit: invalid", "errors", len(errs), "focused", focused)
		return SubmitResult{State: SubmitInvalid, Errors: errs, Focused: focused}, nil
	}

	s.setSubmitState(SubmitSubmitting)
	data := out.res.Data
	if data == nil {
		data = out.snap.Tree()
	}
	s.log.Debug("submit: sending")
	terr := t.Submit(ctx, Submission{Data: data, Values: out.snap, FormID: s.formID})
	if terr == nil {
		if s.opt.ResetAfterSubmit {
			s.resetValues()
		}
		s.setSubmitState(SubmitSuccess)
		return SubmitResult{State: SubmitSuccess, Data: data}, nil
	}

	s.setSubmitState(SubmitFailed)
	p, ok := wire.AsPayload(terr)
	if !ok {
		if fe, isFE := AsFieldErrors(terr); isFE {
			p, ok = &wire.Payload{FieldErrors: fe}, true
		}
	}
	if !ok || (p.FormID != "" && p.FormID != s.formID) {
		s.log.Debug("submit: transport failed", "err", terr)
		return SubmitResult{State: SubmitFailed, Data: data}, terr
	}
	s.MergePayload(p)
	errs := s.Errors()
	focused := s.focusFirstInvalid(errs)
	return SubmitResult{State: SubmitFailed, Errors: errs, Focused: focused, Data: data}, terr
}

// SubmitWith overlays a posted form on the current values before submitting.
// Posted fields win; fields the post does not carry keep their state values.
func (s *Store) SubmitWith(ctx context.Context, t Transport, raw url.Values) (SubmitResult, error) {
	tree, err := wire.DecodeForm(raw)
	if err != nil {
		return SubmitResult{State: s.SubmitState()}, err
	}
	s.overlay(tree)
	return s.Submit(ctx, t)
}

// overlay writes every leaf of tree into the values without triggering
// validation.
func (s *Store) overlay(tree any) {
	entries := fieldpath.Flatten(tree)
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	for _, e := range entries {
		p, err := fieldpath.Parse(e.Path)
		if err != nil {
			s.log.Warn("skipping a malformed repopulated path", "path", e.Path, "err", err)
			continue
		}
		if err := fieldpath.CheckSet(s.values, p); err != nil {
			s.log.Warn("skipping a repopulated path that conflicts with the values", "path", e.Path, "err", err)
			continue
		}
		s.values = fieldpath.Set(s.values, p, e.Value)
		s.emitLocked(e.Path, p, ChangeValue)
	}
	s.mu.Unlock()
	s.flush()
}

// MergePayload applies a server field-error payload: its errors are set on
// top of the current ones and repopulated fields are written back into the
// values. Malformed paths are logged and skipped.
func (s *Store) MergePayload(p *wire.Payload) {
	if p == nil {
		return
	}
	s.mu.Lock()
	for k, msg := range p.FieldErrors {
		fp, err := fieldpath.Parse(k)
		if err != nil {
			s.log.Warn("server returned a malformed path", "path", k, "err", err)
			continue
		}
		s.setErrorLocked(fp.String(), fp, msg)
	}
	s.mu.Unlock()
	s.flush()
	if p.RepopulateFields != nil {
		s.overlay(p.RepopulateFields)
	}
}

// resetValues restores the defaults and clears field metadata but keeps the
// submission counters.
func (s *Store) resetValues() {
	s.mu.Lock()
	s.values = s.defaults
	s.clearUnderLocked(nil)
	s.invalidateLocked("", nil)
	s.emitLocked("", nil, ChangeValue)
	s.emitLocked("", nil, ChangeError)
	s.emitLocked("", nil, ChangeTouched)
	s.mu.Unlock()
	s.flush()
}

// FirstInvalid returns the invalid field that should receive focus: the
// earliest registered one, then the earliest in the defaults' declaration
// order, then the smallest path.
func (s *Store) FirstInvalid() string {
	return s.firstInvalid(s.Errors())
}

func (s *Store) firstInvalid(errs FieldErrors) string {
	if len(errs) == 0 {
		return ""
	}
	type cand struct {
		path  string
		p     fieldpath.Path
		reg   int
		order int
	}
	s.mu.Lock()
	cands := make([]cand, 0, len(errs))
	for k := range errs {
		p, err := fieldpath.Parse(k)
		if err != nil {
			continue
		}
		c := cand{path: k, p: p, reg: math.MaxInt, order: math.MaxInt}
		if i, ok := s.registered[k]; ok {
			c.reg = i
		}
		c.order = declRank(s.declOrder, p)
		cands = append(cands, c)
	}
	s.mu.Unlock()
	if len(cands) == 0 {
		return ""
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.reg != b.reg {
			return a.reg < b.reg
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return fieldpath.Compare(a.p, b.p) < 0
	})
	return cands[0].path
}

// declRank is the declaration index of p, or of the first declared leaf
// below p, or of p's closest declared ancestor.
func declRank(order map[string]int, p fieldpath.Path) int {
	if len(order) == 0 {
		return math.MaxInt
	}
	if i, ok := order[p.String()]; ok {
		return i
	}
	best := math.MaxInt
	for k, i := range order {
		if i < best && hasPathPrefix(k, p) {
			best = i
		}
	}
	if best != math.MaxInt {
		return best
	}
	for q := p.Parent(); len(q) > 0; q = q.Parent() {
		if i, ok := order[q.String()]; ok {
			return i
		}
	}
	return math.MaxInt
}

func (s *Store) focusFirstInvalid(errs FieldErrors) string {
	path := s.firstInvalid(errs)
	if path == "" || s.opt.DisableFocusOnError {
		return ""
	}
	if s.opt.Focuser != nil {
		s.opt.Focuser.Focus(path)
	}
	return path
}
