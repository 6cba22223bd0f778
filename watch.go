package formskema

import (
	"sort"
	"sync"

	"github.com/reoring/formskema/fieldpath"
)

// ChangeKind says which part of a field's state changed.
type ChangeKind uint8

const (
	ChangeValue ChangeKind = iota
	ChangeError
	ChangeTouched
	ChangeValidating
	// ChangeForm covers form-level state: submit status, submit count and the
	// submitted flag. Only root subscribers receive it.
	ChangeForm
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeValue:
		return "value"
	case ChangeError:
		return "error"
	case ChangeTouched:
		return "touched"
	case ChangeValidating:
		return "validating"
	case ChangeForm:
		return "form"
	}
	return "unknown"
}

// Change is one notification. Path is canonical; "" is the root.
type Change struct {
	Path string
	Kind ChangeKind
}

// Listener receives the changes relevant to a subscription, in the order they
// happened. It is called without the store's lock held and may be called from
// a validation goroutine, but never concurrently with another listener of the
// same store. Writes a listener makes are delivered after it returns.
type Listener func(changes []Change)

type change struct {
	Change
	p fieldpath.Path
}

type subscriber struct {
	id    uint64
	mu    sync.Mutex
	paths []fieldpath.Path
	fn    Listener
}

func (sub *subscriber) wants(c change) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	for _, p := range sub.paths {
		if c.Kind == ChangeForm {
			if len(p) == 0 {
				return true
			}
			continue
		}
		if fieldpath.Related(p, c.p) {
			return true
		}
	}
	return false
}

func (s *Store) emitLocked(key string, p fieldpath.Path, kind ChangeKind) {
	s.queue = append(s.queue, change{Change: Change{Path: key, Kind: kind}, p: p})
}

// flush delivers queued changes unless a Batch is open. One goroutine
// delivers at a time; a flush that finds delivery in progress leaves its
// changes to the delivering goroutine, which drains the queue before it stops.
func (s *Store) flush() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.delivering = false
		again := s.batch == 0 && len(s.queue) > 0
		s.mu.Unlock()
		if again {
			s.flush()
		}
	}()

	for {
		s.mu.Lock()
		if s.batch > 0 || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		queue := coalesce(s.queue)
		s.queue = nil
		subs := make([]*subscriber, 0, len(s.subs))
		for _, sub := range s.subs {
			subs = append(subs, sub)
		}
		s.mu.Unlock()

		sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
		for _, sub := range subs {
			var mine []Change
			for _, c := range queue {
				if sub.wants(c) {
					mine = append(mine, c.Change)
				}
			}
			if len(mine) > 0 {
				sub.fn(mine)
			}
		}
	}
}

func coalesce(queue []change) []change {
	seen := make(map[Change]struct{}, len(queue))
	out := queue[:0:0]
	for _, c := range queue {
		if _, dup := seen[c.Change]; dup {
			continue
		}
		seen[c.Change] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Subscribe calls l after every change at path, at an ancestor of path or at
// a descendant of path. Siblings never notify each other. The root path
// receives every change including form-level ones.
func (s *Store) Subscribe(path string, l Listener) (unsubscribe func()) {
	p := parsePath("Subscribe", path)
	sub := s.addSubscriber(l, []fieldpath.Path{p})
	return func() { s.removeSubscriber(sub.id) }
}

func (s *Store) addSubscriber(l Listener, paths []fieldpath.Path) *subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subNext++
	sub := &subscriber{id: s.subNext, paths: paths, fn: l}
	s.subs[sub.id] = sub
	return sub
}

func (s *Store) removeSubscriber(id uint64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// Batch runs fn and delivers the changes it made as one notification per
// listener once fn returns. Batches nest.
func (s *Store) Batch(fn func()) {
	s.mu.Lock()
	s.batch++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.batch--
		s.mu.Unlock()
		s.flush()
	}()
	fn()
}

// Subscription tracks the paths a reader touched and notifies it when any of
// them changes. Reads between Begin and Commit define the watched set:
//
//	sub := store.Track(rerender)
//	sub.Begin()
//	title := sub.Value("todos[0].title")
//	msg := sub.Error("todos[0].title")
//	sub.Commit()
type Subscription struct {
	s       *Store
	sub     *subscriber
	mu      sync.Mutex
	pending []fieldpath.Path
}

// Track creates an inactive subscription; it watches nothing until the first
// Commit.
func (s *Store) Track(l Listener) *Subscription {
	return &Subscription{s: s, sub: s.addSubscriber(l, nil)}
}

// Begin starts recording reads.
func (t *Subscription) Begin() {
	t.mu.Lock()
	t.pending = t.pending[:0]
	t.mu.Unlock()
}

func (t *Subscription) record(op, path string) {
	p := parsePath(op, path)
	t.mu.Lock()
	t.pending = append(t.pending, p)
	t.mu.Unlock()
}

// Value reads and records path.
func (t *Subscription) Value(path string) any {
	t.record("Subscription.Value", path)
	return t.s.GetValue(path)
}

// Error reads and records path's error.
func (t *Subscription) Error(path string) string {
	t.record("Subscription.Error", path)
	return t.s.GetError(path)
}

// Touched reads and records path's touched flag.
func (t *Subscription) Touched(path string) bool {
	t.record("Subscription.Touched", path)
	return t.s.GetTouched(path)
}

// Validating reads and records whether path is validating.
func (t *Subscription) Validating(path string) bool {
	t.record("Subscription.Validating", path)
	return t.s.IsValidating(path)
}

// Commit replaces the watched set with the paths read since Begin.
func (t *Subscription) Commit() {
	t.mu.Lock()
	paths := append([]fieldpath.Path(nil), t.pending...)
	t.mu.Unlock()
	t.sub.mu.Lock()
	t.sub.paths = paths
	t.sub.mu.Unlock()
}

// Watched returns the canonical paths currently watched.
func (t *Subscription) Watched() []string {
	t.sub.mu.Lock()
	defer t.sub.mu.Unlock()
	out := make([]string, len(t.sub.paths))
	for i, p := range t.sub.paths {
		out[i] = p.String()
	}
	return out
}

// Close stops notifications.
func (t *Subscription) Close() { t.s.removeSubscriber(t.sub.id) }
