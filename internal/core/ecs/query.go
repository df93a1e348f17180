package ecs

import (
	"cmp"
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// Generic accessors. T may be a concrete component pointer type (*RigidBody)
// or an interface (Renderable); an interface matches every registered type
// implementing it. Lookups never fail loudly: a missing entity or component
// yields the zero value and false.

// RegisterComponent assigns T its dense tag ahead of first use.
func RegisterComponent[T Component](w *World) ComponentType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.Register(reflect.TypeFor[T]())
}

// AddComponent attaches c to id. It returns false, logging a warning, if the
// entity is not live or c is nil or already attached. c's Awake hook has run
// by the time it returns.
func AddComponent[T Component](w *World, id EntityID, c T) bool {
	return w.Attach(id, c)
}

// GetComponent returns the first-attached component of type T on id.
func GetComponent[T any](w *World, id EntityID) (T, bool) {
	var zero T
	w.mu.RLock()
	defer w.mu.RUnlock()
	rs := w.recordsLocked(reflect.TypeFor[T](), id)
	if len(rs) == 0 {
		return zero, false
	}
	return rs[0].comp.(T), true
}

// GetComponents returns every component of type T on id in attach order.
func GetComponents[T any](w *World, id EntityID) []T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	rs := w.recordsLocked(reflect.TypeFor[T](), id)
	out := make([]T, len(rs))
	for i, r := range rs {
		out[i] = r.comp.(T)
	}
	return out
}

func HasComponent[T any](w *World, id EntityID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, s := range w.registry.matching(reflect.TypeFor[T]()) {
		if s.has(id) {
			return true
		}
	}
	return false
}

// RemoveComponent evicts and tears down every component of type T on id and
// returns how many were removed. The Spatial component is never removed this
// way; use RemoveEntity.
func RemoveComponent[T any](w *World, id EntityID) int {
	t := reflect.TypeFor[T]()
	if t == spatialType {
		w.log.Warn("Spatial cannot be removed from a live entity", zap.Uint64("entity", uint64(id)))
		return 0
	}
	w.mu.Lock()
	var removed []*record
	for _, s := range w.registry.matching(t) {
		if s.typ == spatialType {
			continue
		}
		removed = append(removed, s.remove(id)...)
	}
	teardown := w.detachLocked(removed)
	w.mu.Unlock()

	w.teardown(teardown)
	return len(removed)
}

// GetEntitiesWithComponent returns, in ascending order, every entity holding
// at least one component of type T.
func GetEntitiesWithComponent[T any](w *World) []EntityID {
	w.mu.RLock()
	stores := w.registry.matching(reflect.TypeFor[T]())
	if len(stores) == 1 {
		ids := stores[0].entities()
		w.mu.RUnlock()
		return ids
	}
	seen := make(map[EntityID]struct{})
	for _, s := range stores {
		for id := range s.byEntity {
			seen[id] = struct{}{}
		}
	}
	w.mu.RUnlock()

	ids := make([]EntityID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EachComponent calls fn for every component of type T, ordered by entity then
// attach order. It iterates a snapshot, so fn may mutate the world.
func EachComponent[T any](w *World, fn func(EntityID, T)) {
	t := reflect.TypeFor[T]()
	w.mu.RLock()
	var snap []*record
	for _, s := range w.registry.matching(t) {
		for _, rs := range s.byEntity {
			snap = append(snap, rs...)
		}
	}
	w.mu.RUnlock()

	slices.SortFunc(snap, func(a, b *record) int {
		if c := cmp.Compare(a.owner, b.owner); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	for _, r := range snap {
		if !r.destroyed() {
			fn(r.owner, r.comp.(T))
		}
	}
}

// Each2 calls fn for every entity holding both an A and a B, passing the first
// of each.
func Each2[A, B any](w *World, fn func(EntityID, A, B)) {
	for _, id := range GetEntitiesWithComponent[A](w) {
		a, okA := GetComponent[A](w, id)
		b, okB := GetComponent[B](w, id)
		if okA && okB {
			fn(id, a, b)
		}
	}
}

func (w *World) recordsLocked(t reflect.Type, id EntityID) []*record {
	stores := w.registry.matching(t)
	if len(stores) == 1 {
		return stores[0].all(id)
	}
	var rs []*record
	for _, s := range stores {
		rs = append(rs, s.all(id)...)
	}
	slices.SortFunc(rs, func(a, b *record) int { return cmp.Compare(a.seq, b.seq) })
	return rs
}
