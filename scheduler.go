package formskema

import (
	"context"

	"github.com/reoring/formskema/fieldpath"
)

// fieldRun is one single-field validation, tagged with the seq it was
// initiated under and the values it sees.
type fieldRun struct {
	path string
	p    fieldpath.Path
	seq  uint64
	snap Snapshot
}

// triggerLocked applies the validation behavior of path to ev. It returns the
// run to start once the lock is released, or nil.
func (s *Store) triggerLocked(key string, ev event) *fieldRun {
	p := fieldpath.MustParse(key)
	b := s.opt.ValidationBehavior.For(s.touched[key], s.submitted)
	switch decide(b, ev) {
	case actionClear:
		s.setErrorLocked(key, p, "")
	case actionValidate:
		return s.beginFieldLocked(key, p)
	}
	return nil
}

func (s *Store) beginFieldLocked(key string, p fieldpath.Path) *fieldRun {
	seq := s.nextSeqLocked()
	s.fieldSeq[key] = seq
	s.validating[key] = seq
	s.inflight++
	s.emitLocked(key, p, ChangeValidating)
	return &fieldRun{path: key, p: p, seq: seq, snap: Snapshot{tree: s.values}}
}

// start executes an event-triggered run according to Options.Execution.
func (s *Store) start(run *fieldRun) {
	if run == nil {
		return
	}
	if s.opt.Execution == ExecInline {
		_, _ = s.runField(s.ctx, run)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.runField(s.ctx, run)
	}()
}

func (s *Store) runField(ctx context.Context, run *fieldRun) (string, error) {
	msg, err := ValidateAt(ctx, s.validator, run.snap, run.path)
	s.mu.Lock()
	s.inflight--
	if s.validating[run.path] == run.seq {
		delete(s.validating, run.path)
		s.emitLocked(run.path, run.p, ChangeValidating)
	}
	applied := false
	switch {
	case err != nil:
		s.log.Warn("field validation failed", "path", run.path, "seq", run.seq, "err", err)
	case !s.fieldCurrentLocked(run.path, run.p, run.seq):
		s.log.Debug("discarding stale field validation", "path", run.path, "seq", run.seq)
	default:
		s.setErrorLocked(run.path, run.p, msg)
		applied = true
	}
	s.pruneMarksLocked()
	s.mu.Unlock()
	s.flush()
	switch {
	case err != nil:
		return "", err
	case !applied:
		return "", ErrValidationSuperseded
	}
	return msg, nil
}

// fieldCurrentLocked reports whether a field run may still apply: it is the
// latest run for its path, no later whole-form run has applied, and no reset
// or array operation since covers the path.
func (s *Store) fieldCurrentLocked(key string, p fieldpath.Path, seq uint64) bool {
	return s.fieldSeq[key] == seq && s.formApplied < seq && !s.coveredLocked(p, seq)
}

func (s *Store) coveredLocked(p fieldpath.Path, seq uint64) bool {
	for _, m := range s.marks {
		if m.seq > seq && p.HasPrefix(m.path) {
			return true
		}
	}
	return false
}

func (s *Store) pruneMarksLocked() {
	if s.inflight == 0 && len(s.marks) > 0 {
		clear(s.marks)
	}
}

// ValidateField validates one path now, regardless of behavior, and returns
// its message. It returns ErrValidationSuperseded when a newer run or a reset
// overtook it, and the validator's error when it could not run.
func (s *Store) ValidateField(ctx context.Context, path string) (string, error) {
	p := parsePath("ValidateField", path)
	s.mu.Lock()
	run := s.beginFieldLocked(p.String(), p)
	s.mu.Unlock()
	s.flush()
	return s.runField(ctx, run)
}

// ValidateAll validates the whole form and replaces the error map with the
// result. Paths validated individually after this run started, and paths
// reset or moved by an array operation since, keep their current error.
func (s *Store) ValidateAll(ctx context.Context) (bool, error) {
	out, err := s.validateForm(ctx)
	return out.valid, err
}

type formOutcome struct {
	res   Result
	snap  Snapshot
	valid bool
}

func (s *Store) validateForm(ctx context.Context) (formOutcome, error) {
	s.mu.Lock()
	seq := s.nextSeqLocked()
	s.formSeq = seq
	s.formPending = seq
	s.inflight++
	snap := Snapshot{tree: s.values}
	s.emitLocked("", nil, ChangeValidating)
	s.mu.Unlock()
	s.flush()

	res, err := validateAll(ctx, s.validator, snap)

	s.mu.Lock()
	defer func() {
		s.pruneMarksLocked()
		s.mu.Unlock()
		s.flush()
	}()
	s.inflight--
	if s.formPending == seq {
		s.formPending = 0
		s.emitLocked("", nil, ChangeValidating)
	}
	if err != nil {
		s.log.Warn("form validation failed", "seq", seq, "err", err)
		return formOutcome{}, err
	}
	if s.formSeq != seq {
		s.log.Debug("discarding stale form validation", "seq", seq)
		return formOutcome{}, ErrValidationSuperseded
	}
	next := FieldErrors{}
	for k, msg := range res.Errors {
		if msg == "" {
			continue
		}
		p, perr := fieldpath.Parse(k)
		if perr != nil {
			s.log.Warn("validator returned a malformed path", "path", k, "err", perr)
			continue
		}
		if s.skipForFormLocked(p.String(), p, seq) {
			continue
		}
		next[p.String()] = msg
	}
	for k, msg := range s.errors {
		if s.skipForFormLocked(k, fieldpath.MustParse(k), seq) {
			next[k] = msg
		}
	}
	s.replaceErrorsLocked(next)
	s.formApplied = seq
	return formOutcome{res: res, snap: snap, valid: len(s.errors) == 0}, nil
}

func (s *Store) skipForFormLocked(key string, p fieldpath.Path, seq uint64) bool {
	return s.fieldSeq[key] > seq || s.coveredLocked(p, seq)
}

func (s *Store) replaceErrorsLocked(next FieldErrors) {
	old := s.errors
	s.errors = next
	for k, v := range old {
		if nv, ok := next[k]; !ok || nv != v {
			s.emitLocked(k, fieldpath.MustParse(k), ChangeError)
		}
	}
	for k := range next {
		if _, ok := old[k]; !ok {
			s.emitLocked(k, fieldpath.MustParse(k), ChangeError)
		}
	}
}
