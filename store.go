package formskema

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/reoring/formskema/fieldpath"
	"github.com/reoring/formskema/wire"
)

// Store holds a form's values and per-field metadata. All methods are safe for
// concurrent use. Listeners and validators are always called without the
// store's lock held.
type Store struct {
	mu        sync.Mutex
	opt       Options
	log       *slog.Logger
	validator Validator
	formID    string

	values    any
	defaults  any
	declOrder map[string]int

	errors      FieldErrors
	touched     map[string]bool
	validating  map[string]uint64
	formPending uint64
	submitted   bool
	submitState SubmitState
	submitCount int

	// Sequencing. Every run, reset and array operation takes the next seq.
	seq         uint64
	fieldSeq    map[string]uint64
	formSeq     uint64
	formApplied uint64
	marks       map[string]mark
	inflight    int

	keys       map[string][]string
	registered map[string]int
	regNext    int

	subs    map[uint64]*subscriber
	subNext uint64
	batch   int
	queue   []change

	// delivering is set while one goroutine runs listeners.
	delivering bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// mark invalidates every run under path that started before seq.
type mark struct {
	path fieldpath.Path
	seq  uint64
}

// New creates a store whose values start as defaults, a value tree of
// map[string]any, []any and leaves. defaults must not be mutated afterwards.
func New(defaults any, v Validator, opts ...Options) *Store {
	opt := lastOptions(opts)
	formID := opt.FormID
	if formID == "" {
		formID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		opt:        opt,
		log:        opt.Logger.With("form_id", formID),
		validator:  v,
		formID:     formID,
		values:     defaults,
		defaults:   defaults,
		errors:     FieldErrors{},
		touched:    map[string]bool{},
		validating: map[string]uint64{},
		fieldSeq:   map[string]uint64{},
		marks:      map[string]mark{},
		keys:       map[string][]string{},
		registered: map[string]int{},
		subs:       map[uint64]*subscriber{},
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NewFromJSON decodes defaults from JSON. The order fields appear in the
// document is used to pick the first invalid field on submit.
func NewFromJSON(data []byte, v Validator, opts ...Options) (*Store, error) {
	tr, err := wire.DecodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("formskema: decode defaults: %w", err)
	}
	s := New(tr.Value, v, opts...)
	s.declOrder = orderIndex(tr.Order)
	return s, nil
}

// NewFromStruct derives defaults from a typed value through its JSON form,
// keeping struct field order.
func NewFromStruct(defaults any, v Validator, opts ...Options) (*Store, error) {
	tr, err := wire.TreeOf(defaults)
	if err != nil {
		return nil, fmt.Errorf("formskema: encode defaults: %w", err)
	}
	s := New(tr.Value, v, opts...)
	s.declOrder = orderIndex(tr.Order)
	return s, nil
}

func orderIndex(order []string) map[string]int {
	m := make(map[string]int, len(order))
	for i, p := range order {
		if _, ok := m[p]; !ok {
			m[p] = i
		}
	}
	return m
}

// FormID identifies the form in server field-error payloads.
func (s *Store) FormID() string { return s.formID }

// Options returns the effective options.
func (s *Store) Options() Options { return s.opt }

func parsePath(op, path string) fieldpath.Path {
	p, err := fieldpath.Parse(path)
	if err != nil {
		misuse(op, path, err.Error())
	}
	return p
}

func (s *Store) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

// GetValue returns the value at path, or nil when absent.
func (s *Store) GetValue(path string) any {
	v, _ := s.LookupValue(path)
	return v
}

// LookupValue returns the value at path and whether it is present.
func (s *Store) LookupValue(path string) (any, bool) {
	p := parsePath("LookupValue", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fieldpath.Lookup(s.values, p)
}

// SetValue writes v at path, creating missing parents, and treats the write as
// a change event for path's validation behavior. Addressing an existing array
// by key panics with *MisuseError and leaves the values unchanged.
func (s *Store) SetValue(path string, v any) {
	p := parsePath("SetValue", path)
	key := p.String()
	s.mu.Lock()
	if err := fieldpath.CheckSet(s.values, p); err != nil {
		s.mu.Unlock()
		misuse("SetValue", path, err.Error())
	}
	s.values = fieldpath.Set(s.values, p, v)
	for k := range s.keys {
		if hasPathPrefix(k, p) {
			delete(s.keys, k)
		}
	}
	s.emitLocked(key, p, ChangeValue)
	run := s.triggerLocked(key, eventChange)
	s.mu.Unlock()
	s.flush()
	s.start(run)
}

// Values returns a snapshot of the current values.
func (s *Store) Values() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{tree: s.values}
}

// Defaults returns a snapshot of the default values.
func (s *Store) Defaults() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{tree: s.defaults}
}

// IsDirty reports whether the value at path differs from its default. The
// root path reports whether the form as a whole is dirty.
func (s *Store) IsDirty(path string) bool {
	p := parsePath("IsDirty", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, curOK := fieldpath.Lookup(s.values, p)
	def, defOK := fieldpath.Lookup(s.defaults, p)
	return curOK != defOK || !reflect.DeepEqual(cur, def)
}

// GetError returns the error message at path, or "".
func (s *Store) GetError(path string) string {
	p := parsePath("GetError", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors[p.String()]
}

// SetError sets the error at path. An empty message clears it.
func (s *Store) SetError(path, msg string) {
	p := parsePath("SetError", path)
	s.mu.Lock()
	s.setErrorLocked(p.String(), p, msg)
	s.mu.Unlock()
	s.flush()
}

func (s *Store) setErrorLocked(key string, p fieldpath.Path, msg string) {
	old, had := s.errors[key]
	switch {
	case msg == "" && had:
		delete(s.errors, key)
	case msg != "" && old != msg:
		s.errors[key] = msg
	default:
		return
	}
	s.emitLocked(key, p, ChangeError)
}

// Errors returns a copy of every field error.
func (s *Store) Errors() FieldErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors.Clone()
}

// ErrorsUnder returns the errors at path and below it.
func (s *Store) ErrorsUnder(path string) FieldErrors {
	p := parsePath("ErrorsUnder", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := FieldErrors{}
	for k, v := range s.errors {
		if hasPathPrefix(k, p) {
			out[k] = v
		}
	}
	return out
}

// IsValid reports whether no field carries an error.
func (s *Store) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors) == 0
}

// GetTouched reports whether path was touched.
func (s *Store) GetTouched(path string) bool {
	p := parsePath("GetTouched", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched[p.String()]
}

// SetTouched sets the touched flag without triggering validation.
func (s *Store) SetTouched(path string, touched bool) {
	p := parsePath("SetTouched", path)
	s.mu.Lock()
	s.setTouchedLocked(p.String(), p, touched)
	s.mu.Unlock()
	s.flush()
}

func (s *Store) setTouchedLocked(key string, p fieldpath.Path, touched bool) {
	if s.touched[key] == touched {
		return
	}
	if touched {
		s.touched[key] = true
	} else {
		delete(s.touched, key)
	}
	s.emitLocked(key, p, ChangeTouched)
}

// Blur marks path touched and treats it as a blur event. The validation
// behavior is chosen from the field's state before the blur.
func (s *Store) Blur(path string) {
	p := parsePath("Blur", path)
	key := p.String()
	s.mu.Lock()
	run := s.triggerLocked(key, eventBlur)
	s.setTouchedLocked(key, p, true)
	s.mu.Unlock()
	s.flush()
	s.start(run)
}

// IsValidating reports whether a run is outstanding for path, a descendant of
// path, or the whole form.
func (s *Store) IsValidating(path string) bool {
	p := parsePath("IsValidating", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.formPending != 0 {
		return true
	}
	for k := range s.validating {
		if hasPathPrefix(k, p) {
			return true
		}
	}
	return false
}

// State returns the validation-relevant state of path.
func (s *Store) State(path string) FieldState {
	p := parsePath("State", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fieldState(s.touched[p.String()], s.submitted)
}

// HasBeenSubmitted reports whether Submit was called since the last reset.
func (s *Store) HasBeenSubmitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// RegisterField records path in declaration order, used to pick which invalid
// field receives focus. The returned func unregisters it.
func (s *Store) RegisterField(path string) (unregister func()) {
	key := parsePath("RegisterField", path).String()
	s.mu.Lock()
	if _, ok := s.registered[key]; !ok {
		s.registered[key] = s.regNext
		s.regNext++
	}
	s.mu.Unlock()
	return func() { s.UnregisterField(key) }
}

// UnregisterField forgets path's declaration order.
func (s *Store) UnregisterField(path string) {
	key := parsePath("UnregisterField", path).String()
	s.mu.Lock()
	delete(s.registered, key)
	s.mu.Unlock()
}

// ResetField restores path to its default (or removes it when there is none)
// and clears the metadata of path and everything below it. Runs already in
// flight for those paths are discarded when they finish.
func (s *Store) ResetField(path string) {
	p := parsePath("ResetField", path)
	key := p.String()
	s.mu.Lock()
	if def, ok := fieldpath.Lookup(s.defaults, p); ok {
		s.values = fieldpath.Set(s.values, p, def)
	} else {
		s.values = fieldpath.Unset(s.values, p)
	}
	s.clearUnderLocked(p)
	s.invalidateLocked(key, p)
	s.emitLocked(key, p, ChangeValue)
	s.emitLocked(key, p, ChangeError)
	s.emitLocked(key, p, ChangeTouched)
	s.mu.Unlock()
	s.flush()
}

func (s *Store) clearUnderLocked(p fieldpath.Path) {
	for k := range s.errors {
		if hasPathPrefix(k, p) {
			delete(s.errors, k)
		}
	}
	for k := range s.touched {
		if hasPathPrefix(k, p) {
			delete(s.touched, k)
		}
	}
	for k := range s.validating {
		if hasPathPrefix(k, p) {
			delete(s.validating, k)
		}
	}
	for k := range s.keys {
		if hasPathPrefix(k, p) {
			delete(s.keys, k)
		}
	}
}

// ResetForm restores the defaults, or installs next[0] as the new defaults, and
// clears all metadata and submission state. Every run in flight is discarded.
func (s *Store) ResetForm(next ...any) {
	s.mu.Lock()
	if len(next) > 0 {
		s.defaults = next[0]
		s.declOrder = nil
	}
	s.values = s.defaults
	s.errors = FieldErrors{}
	s.touched = map[string]bool{}
	s.validating = map[string]uint64{}
	s.keys = map[string][]string{}
	s.formPending = 0
	s.submitted = false
	s.submitState = SubmitIdle
	s.submitCount = 0
	s.invalidateLocked("", nil)
	s.formSeq = s.seq
	s.emitLocked("", nil, ChangeValue)
	s.emitLocked("", nil, ChangeError)
	s.emitLocked("", nil, ChangeTouched)
	s.emitLocked("", nil, ChangeForm)
	s.mu.Unlock()
	s.flush()
}

// invalidateLocked discards every run under p that is still in flight.
func (s *Store) invalidateLocked(key string, p fieldpath.Path) {
	seq := s.nextSeqLocked()
	if s.inflight == 0 {
		return
	}
	s.marks[key] = mark{path: p, seq: seq}
}

// Wait blocks until every event-triggered validation has settled.
func (s *Store) Wait() { s.wg.Wait() }

// Close cancels the context of runs still in flight and waits for them.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}

// itemKeysLocked returns the keys of the first n slots of the array at key,
// minting keys for slots seen for the first time.
func (s *Store) itemKeysLocked(key string, n int) []string {
	ks := s.keys[key]
	if len(ks) > n {
		ks = ks[:n:n]
	}
	for len(ks) < n {
		ks = append(ks, ulid.Make().String())
	}
	s.keys[key] = ks
	return ks
}

func hasPathPrefix(key string, prefix fieldpath.Path) bool {
	if len(prefix) == 0 {
		return true
	}
	kp, err := fieldpath.Parse(key)
	return err == nil && kp.HasPrefix(prefix)
}
