// ============================================================================
// UniqueList - ordered collection with a uniqueness invariant
// ============================================================================
//
// Package: internal/uniquelist
//
// A List keeps its elements in insertion order and refuses to hold two
// elements that are "the same" under the predicate it was built with. The
// predicate is the entity's weak identity, not its full equality.
//
// Every successful mutation is delivered to subscribers as a Change after the
// list lock is released, so a subscriber may read the list again and will see
// the post-mutation state. A failed mutation leaves the list untouched and
// notifies nobody.
//
// ============================================================================

package uniquelist

import (
	"fmt"
	"sync"

	"github.com/ChuLiYu/labqueue/pkg/types"
)

// ChangeKind describes what a mutation did.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Replaced
	Reset
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Replaced:
		return "replaced"
	case Reset:
		return "reset"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change is delivered to subscribers after each committed mutation.
// Old is set for Removed and Replaced, New for Added and Replaced.
// Index is -1 for Reset.
type Change[T any] struct {
	Kind  ChangeKind
	Index int
	Old   T
	New   T
}

// SameFunc is the weak identity predicate of an entity type.
type SameFunc[T any] func(a, b T) bool

// List is a UniqueEntityList. The zero value is not usable; use New.
type List[T any] struct {
	mu        sync.RWMutex
	items     []T
	same      SameFunc[T]
	label     string
	nextSub   int
	observers map[int]func(Change[T])
	order     []int
}

// New builds an empty list. label names the entity in error messages.
func New[T any](label string, same SameFunc[T]) *List[T] {
	return &List[T]{
		same:      same,
		label:     label,
		observers: make(map[int]func(Change[T])),
	}
}

// ============================================================================
// Queries
// ============================================================================

// Contains reports whether an element the same as item is present.
func (l *List[T]) Contains(item T) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexOf(item) >= 0
}

// Find returns the first element matching fn.
func (l *List[T]) Find(fn func(T) bool) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, it := range l.items {
		if fn(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Items returns an ordered copy of the elements.
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]T(nil), l.items...)
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Clone copies the list spine. Elements are shared, subscribers are not.
func (l *List[T]) Clone() *List[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c := New(l.label, l.same)
	c.items = append([]T(nil), l.items...)
	return c
}

// ============================================================================
// Mutations
// ============================================================================

// Add appends item, failing with ErrDuplicateEntity if an equivalent one exists.
func (l *List[T]) Add(item T) error {
	l.mu.Lock()
	if l.indexOf(item) >= 0 {
		l.mu.Unlock()
		return types.Errorf(types.ErrDuplicateEntity, "%s already exists: %v", l.label, item)
	}
	l.items = append(l.items, item)
	idx := len(l.items) - 1
	l.checkUniqueAt(idx)
	l.mu.Unlock()

	l.notify(Change[T]{Kind: Added, Index: idx, New: item})
	return nil
}

// Remove deletes the element the same as item.
func (l *List[T]) Remove(item T) error {
	_, err := l.RemoveWhere(func(it T) bool { return l.same(it, item) })
	return err
}

// RemoveWhere deletes the first element matching fn and returns it.
func (l *List[T]) RemoveWhere(fn func(T) bool) (T, error) {
	l.mu.Lock()
	idx := -1
	for i, it := range l.items {
		if fn(it) {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		var zero T
		return zero, types.Errorf(types.ErrEntityNotFound, "%s not found", l.label)
	}
	old := l.items[idx]
	next := make([]T, 0, len(l.items)-1)
	next = append(next, l.items[:idx]...)
	next = append(next, l.items[idx+1:]...)
	l.items = next
	l.mu.Unlock()

	l.notify(Change[T]{Kind: Removed, Index: idx, Old: old})
	return old, nil
}

// Replace swaps the first element matching target for edited, keeping its
// position. edited may change the weak identity as long as it does not
// collide with another element.
func (l *List[T]) Replace(target func(T) bool, edited T) error {
	l.mu.Lock()
	idx := -1
	for i, it := range l.items {
		if target(it) {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return types.Errorf(types.ErrEntityNotFound, "%s not found", l.label)
	}
	for i, it := range l.items {
		if i != idx && l.same(it, edited) {
			l.mu.Unlock()
			return types.Errorf(types.ErrDuplicateEntity, "%s already exists: %v", l.label, edited)
		}
	}
	old := l.items[idx]
	next := append([]T(nil), l.items...)
	next[idx] = edited
	l.items = next
	l.checkUniqueAt(idx)
	l.mu.Unlock()

	l.notify(Change[T]{Kind: Replaced, Index: idx, Old: old, New: edited})
	return nil
}

// SetAll replaces the whole content. It fails with ErrDuplicateEntity, leaving
// the list unchanged, if items holds two equivalent elements.
func (l *List[T]) SetAll(items []T) error {
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			if l.same(items[i], items[j]) {
				return types.Errorf(types.ErrDuplicateEntity, "%s listed twice: %v", l.label, items[j])
			}
		}
	}
	l.mu.Lock()
	l.items = append([]T(nil), items...)
	l.mu.Unlock()

	l.notify(Change[T]{Kind: Reset, Index: -1})
	return nil
}

// ============================================================================
// Subscribers
// ============================================================================

// Subscribe registers fn for every committed change and returns a function
// that removes it. Subscribers run in registration order.
func (l *List[T]) Subscribe(fn func(Change[T])) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.observers[id] = fn
	l.order = append(l.order, id)
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.observers, id)
		for i, o := range l.order {
			if o == id {
				l.order = append(l.order[:i:i], l.order[i+1:]...)
				break
			}
		}
	}
}

func (l *List[T]) notify(c Change[T]) {
	l.mu.RLock()
	fns := make([]func(Change[T]), 0, len(l.order))
	for _, id := range l.order {
		fns = append(fns, l.observers[id])
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// ============================================================================
// Helpers (caller holds the lock)
// ============================================================================

func (l *List[T]) indexOf(item T) int {
	for i, it := range l.items {
		if l.same(it, item) {
			return i
		}
	}
	return -1
}

// checkUniqueAt verifies the element just written does not collide with any
// other one. A collision here means the pre-checks above are wrong.
func (l *List[T]) checkUniqueAt(idx int) {
	for i, it := range l.items {
		if i != idx && l.same(it, l.items[idx]) {
			panic(types.InvariantViolation{
				Msg: fmt.Sprintf("%s list holds duplicates at %d and %d", l.label, i, idx),
			})
		}
	}
}
