package event

import (
	"reflect"
	"slices"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during frame N are
// delivered when DispatchAll runs at the start of frame N+1. Emit is safe from
// any goroutine, including hooks running under parallel dispatch.
type Bus struct {
	mu       sync.Mutex
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	order    []reflect.Type // first-seen order, so dispatch is deterministic
	known    map[reflect.Type]struct{}
	handlers map[reflect.Type][]func(any)
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		known:    make(map[reflect.Type]struct{}),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

func (b *Bus) track(t reflect.Type) {
	if _, ok := b.known[t]; !ok {
		b.known[t] = struct{}{}
		b.order = append(b.order, t)
	}
}

// Emit queues an event into the back buffer (readable next frame).
func Emit[T any](b *Bus, ev T) {
	t := reflect.TypeFor[T]()
	b.mu.Lock()
	b.track(t)
	b.back[t] = append(b.back[t], ev)
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := reflect.TypeFor[T]()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.track(t)
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
	b.mu.Unlock()
}

// DispatchAll delivers front-buffer events to their handlers, grouped by event
// type in first-seen order and in emit order within a type. Handlers may Emit;
// those events land in the back buffer.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	type batch struct {
		events   []any
		handlers []func(any)
	}
	batches := make([]batch, 0, len(b.order))
	for _, t := range b.order {
		evs := b.front[t]
		hs := b.handlers[t]
		if len(evs) == 0 || len(hs) == 0 {
			continue
		}
		batches = append(batches, batch{
			events:   slices.Clone(evs),
			handlers: slices.Clone(hs),
		})
	}
	b.mu.Unlock()

	for _, bt := range batches {
		for _, ev := range bt.events {
			for _, h := range bt.handlers {
				h(ev)
			}
		}
	}
}

// Pending reports how many events are waiting in the back buffer.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, evs := range b.back {
		n += len(evs)
	}
	return n
}
