package ecs

import (
	"slices"
	"sync"
)

// expiryTolerance absorbs float drift so that N steps of 1/N seconds expire a
// one-second timer on the Nth step rather than the N+1th.
const expiryTolerance = 1e-9

// timedRemovals maps entities to remaining seconds of fixed-step time.
type timedRemovals struct {
	mu      sync.Mutex
	pending map[EntityID]float64
}

func newTimedRemovals() *timedRemovals {
	return &timedRemovals{pending: make(map[EntityID]float64, 64)}
}

// schedule overwrites any earlier request for id.
func (q *timedRemovals) schedule(id EntityID, seconds float64) {
	q.mu.Lock()
	q.pending[id] = seconds
	q.mu.Unlock()
}

func (q *timedRemovals) cancel(id EntityID) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}

func (q *timedRemovals) remaining(id EntityID) (float64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.pending[id]
	return s, ok
}

func (q *timedRemovals) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// advance subtracts dt from every entry and drops and returns the expired
// ones in ascending ID order.
func (q *timedRemovals) advance(dt float64) []EntityID {
	q.mu.Lock()
	defer q.mu.Unlock()
	var expired []EntityID
	for id, left := range q.pending {
		left -= dt
		if left <= expiryTolerance {
			expired = append(expired, id)
			delete(q.pending, id)
			continue
		}
		q.pending[id] = left
	}
	slices.Sort(expired)
	return expired
}

func (w *World) processTimedRemovals(dt float64) {
	for _, id := range w.timed.advance(dt) {
		w.RemoveEntity(id)
	}
}
