package ecs

import "reflect"

// ComponentType is a dense per-world tag assigned on first registration.
type ComponentType uint32

// Registry maps concrete component types to dense tags and owns one store per
// tag, so lookups index a slice instead of hashing the type.
type Registry struct {
	ids    map[reflect.Type]ComponentType
	stores []*componentStore
}

func NewRegistry() *Registry {
	return &Registry{
		ids:    make(map[reflect.Type]ComponentType, 32),
		stores: make([]*componentStore, 0, 32),
	}
}

// Register returns the tag for t, assigning the next one if t is new.
func (r *Registry) Register(t reflect.Type) ComponentType {
	if ct, ok := r.ids[t]; ok {
		return ct
	}
	ct := ComponentType(len(r.stores))
	r.ids[t] = ct
	r.stores = append(r.stores, newComponentStore(t))
	return ct
}

func (r *Registry) Lookup(t reflect.Type) (ComponentType, bool) {
	ct, ok := r.ids[t]
	return ct, ok
}

func (r *Registry) Name(ct ComponentType) string {
	return r.stores[ct].name
}

func (r *Registry) Len() int {
	return len(r.stores)
}

func (r *Registry) store(ct ComponentType) *componentStore {
	return r.stores[ct]
}

// RemoveAll evicts the entity from every registered store, in tag order.
func (r *Registry) RemoveAll(id EntityID) []*record {
	var removed []*record
	for _, s := range r.stores {
		removed = append(removed, s.remove(id)...)
	}
	return removed
}

// matching returns the stores whose element type can be assigned to t. For a
// concrete t that is at most its own store; for an interface t it is every
// store whose type implements it.
func (r *Registry) matching(t reflect.Type) []*componentStore {
	if t.Kind() != reflect.Interface {
		if ct, ok := r.ids[t]; ok {
			return []*componentStore{r.stores[ct]}
		}
		return nil
	}
	var out []*componentStore
	for _, s := range r.stores {
		if s.typ.Implements(t) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) componentCount() int {
	n := 0
	for _, s := range r.stores {
		n += s.count
	}
	return n
}
