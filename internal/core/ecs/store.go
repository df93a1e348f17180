package ecs

import (
	"reflect"
	"slices"
	"sync/atomic"
)

const (
	statePendingStart uint32 = iota
	stateStarted
	stateDestroyed
)

// record is the store's handle on one attached component instance.
type record struct {
	comp  Component
	owner EntityID
	ctype ComponentType
	seq   uint64
	hooks hookSet
	state atomic.Uint32
}

func (r *record) destroyed() bool { return r.state.Load() == stateDestroyed }
func (r *record) started() bool   { return r.state.Load() == stateStarted }

// markDestroyed moves the record to its terminal state. Returns false if it was
// already there.
func (r *record) markDestroyed() bool {
	return r.state.Swap(stateDestroyed) != stateDestroyed
}

// componentStore holds every instance of one concrete component type, keyed by
// owner, in attachment order.
type componentStore struct {
	typ      reflect.Type
	name     string
	byEntity map[EntityID][]*record
	count    int
}

func newComponentStore(t reflect.Type) *componentStore {
	return &componentStore{
		typ:      t,
		name:     t.String(),
		byEntity: make(map[EntityID][]*record, 64),
	}
}

func (s *componentStore) add(r *record) {
	s.byEntity[r.owner] = append(s.byEntity[r.owner], r)
	s.count++
}

func (s *componentStore) first(id EntityID) (*record, bool) {
	rs := s.byEntity[id]
	if len(rs) == 0 {
		return nil, false
	}
	return rs[0], true
}

func (s *componentStore) all(id EntityID) []*record {
	return s.byEntity[id]
}

func (s *componentStore) has(id EntityID) bool {
	return len(s.byEntity[id]) > 0
}

// remove evicts every instance the entity owns and returns them.
func (s *componentStore) remove(id EntityID) []*record {
	rs, ok := s.byEntity[id]
	if !ok {
		return nil
	}
	delete(s.byEntity, id)
	s.count -= len(rs)
	return rs
}

// removeRecord evicts a single instance.
func (s *componentStore) removeRecord(r *record) bool {
	rs := s.byEntity[r.owner]
	i := slices.Index(rs, r)
	if i < 0 {
		return false
	}
	rs = slices.Delete(rs, i, i+1)
	if len(rs) == 0 {
		delete(s.byEntity, r.owner)
	} else {
		s.byEntity[r.owner] = rs
	}
	s.count--
	return true
}

// entities returns owners in ascending ID order.
func (s *componentStore) entities() []EntityID {
	ids := make([]EntityID, 0, len(s.byEntity))
	for id := range s.byEntity {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
