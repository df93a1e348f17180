package event

import "sync"

// Handle identifies a registered observer for later removal.
type Handle uint64

// Observers is an ordered list of callbacks. Notify calls them in insertion
// order; callbacks added or removed during a Notify take effect on the next
// one. The zero value is ready to use.
type Observers[T any] struct {
	mu      sync.Mutex
	next    Handle
	entries []observer[T]
}

type observer[T any] struct {
	h  Handle
	fn func(T)
}

// Add appends fn and returns its handle.
func (o *Observers[T]) Add(fn func(T)) Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.entries = append(o.entries, observer[T]{h: o.next, fn: fn})
	return o.next
}

// Remove drops the observer registered under h. Returns false if unknown.
func (o *Observers[T]) Remove(h Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.h == h {
			o.entries = append(o.entries[:i:i], o.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (o *Observers[T]) Clear() {
	o.mu.Lock()
	o.entries = nil
	o.mu.Unlock()
}

func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// Notify calls every observer with v.
func (o *Observers[T]) Notify(v T) {
	o.mu.Lock()
	snap := o.entries
	o.mu.Unlock()
	for _, e := range snap {
		e.fn(v)
	}
}
