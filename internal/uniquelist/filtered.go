package uniquelist

import "sync"

// Filtered is a read-only live projection of a List. It recomputes its
// content whenever the source changes or the predicate is replaced.
type Filtered[T any] struct {
	source *List[T]

	mu    sync.RWMutex
	pred  func(T) bool
	items []T

	unsubscribe func()
}

// ShowAll is the predicate that keeps everything.
func ShowAll[T any](T) bool { return true }

// NewFiltered subscribes to source. Call Close to detach it.
func NewFiltered[T any](source *List[T], pred func(T) bool) *Filtered[T] {
	if pred == nil {
		pred = ShowAll[T]
	}
	f := &Filtered[T]{source: source, pred: pred}
	f.recompute()
	f.unsubscribe = source.Subscribe(func(Change[T]) { f.recompute() })
	return f
}

// SetPredicate replaces the filter; nil shows everything.
func (f *Filtered[T]) SetPredicate(pred func(T) bool) {
	if pred == nil {
		pred = ShowAll[T]
	}
	f.mu.Lock()
	f.pred = pred
	f.mu.Unlock()
	f.recompute()
}

// Items returns the visible elements in source order.
func (f *Filtered[T]) Items() []T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]T(nil), f.items...)
}

func (f *Filtered[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// Close stops following the source.
func (f *Filtered[T]) Close() {
	if f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
}

func (f *Filtered[T]) recompute() {
	all := f.source.Items()

	f.mu.Lock()
	defer f.mu.Unlock()
	visible := make([]T, 0, len(all))
	for _, it := range all {
		if f.pred(it) {
			visible = append(visible, it)
		}
	}
	f.items = visible
}
