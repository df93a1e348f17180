package ecs

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/l1jgo/enginecore/internal/core/event"
	"go.uber.org/zap"
)

// World is the entity/component container. One World is constructed at the
// composition root and handed to every system that needs it.
//
// Structural state (entity liveness, stores, lifecycle lists) is guarded by mu.
// Hooks are always invoked with mu released, so a hook may create or remove
// entities and components, including its own.
type World struct {
	log *zap.Logger
	bus *event.Bus

	mu        sync.RWMutex
	pool      *EntityPool
	registry  *Registry
	lifecycle *lifecycleList
	nextSeq   uint64

	timed   *timedRemovals
	workers int

	// While a parallel pass runs, OnDestroy calls are staged and run after
	// every worker has returned.
	staging bool
	staged  []*record

	hookPanics atomic.Uint64
}

// Option configures a World.
type Option func(*World)

// WithWorkers fans Update and FixedUpdate hooks out over n goroutines. n <= 1
// keeps dispatch on the calling goroutine.
func WithWorkers(n int) Option {
	return func(w *World) { w.workers = n }
}

// WithEventBus makes the world emit EntityCreated and EntityRemoved events.
func WithEventBus(b *event.Bus) Option {
	return func(w *World) { w.bus = b }
}

func NewWorld(log *zap.Logger, opts ...Option) *World {
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		log:       log,
		pool:      NewEntityPool(),
		registry:  NewRegistry(),
		lifecycle: newLifecycleList(),
		timed:     newTimedRemovals(),
		workers:   1,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.registry.Register(spatialType)
	return w
}

func (w *World) Registry() *Registry { return w.registry }

// Logger is the world's logger, for components that report their own errors.
func (w *World) Logger() *zap.Logger { return w.log }

// CreateEntity allocates the next ID and attaches its Spatial before any other
// caller can observe the entity.
func (w *World) CreateEntity() EntityID {
	w.mu.Lock()
	id := w.pool.Create()
	sp := NewSpatial()
	sp.world, sp.owner, sp.spatial = w, id, sp
	w.registry.store(0).add(w.newRecord(sp, id, 0))
	w.mu.Unlock()

	if w.bus != nil {
		event.Emit(w.bus, EntityCreated{Entity: id})
	}
	return id
}

func (w *World) Alive(id EntityID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pool.Alive(id)
}

func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pool.Len()
}

// Spatial returns the entity's Spatial, or nil if the entity is not live.
func (w *World) Spatial(id EntityID) *Spatial {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.spatialLocked(id)
}

func (w *World) spatialLocked(id EntityID) *Spatial {
	r, ok := w.registry.store(0).first(id)
	if !ok {
		return nil
	}
	return r.comp.(*Spatial)
}

// RemoveEntity tears down and evicts every component the entity owns, marks it
// dead and drops any pending timed removal. Unknown or already removed IDs are
// ignored, which also makes the call safe from inside the entity's own
// OnDestroy hooks. Called from a hook under parallel dispatch, the entity dies
// at once but its OnDestroy hooks wait until the pass ends, so they never
// overlap a hook still running on another worker.
func (w *World) RemoveEntity(id EntityID) {
	w.mu.Lock()
	if !w.pool.Destroy(id) {
		w.mu.Unlock()
		w.log.Debug("remove of non-live entity ignored", zap.Uint64("entity", uint64(id)))
		return
	}
	removed := w.registry.RemoveAll(id)
	teardown := w.detachLocked(removed)
	w.mu.Unlock()

	w.timed.cancel(id)
	w.teardown(teardown)

	if w.bus != nil {
		event.Emit(w.bus, EntityRemoved{Entity: id})
	}
}

// RemoveEntityTimed schedules removal after seconds of fixed-step time. A
// second request for the same entity replaces the first.
func (w *World) RemoveEntityTimed(id EntityID, seconds float64) {
	if !w.Alive(id) {
		w.log.Debug("timed remove of non-live entity ignored", zap.Uint64("entity", uint64(id)))
		return
	}
	w.timed.schedule(id, seconds)
}

// PendingRemoval reports the remaining seconds of a scheduled removal.
func (w *World) PendingRemoval(id EntityID) (float64, bool) {
	return w.timed.remaining(id)
}

// Attach is the non-generic form of AddComponent.
func (w *World) Attach(id EntityID, c Component) bool {
	if isNilComponent(c) {
		w.log.Warn("attach of nil component ignored", zap.Uint64("entity", uint64(id)))
		return false
	}
	t := reflect.TypeOf(c)
	b := c.base()

	w.mu.Lock()
	if !w.pool.Alive(id) {
		w.mu.Unlock()
		w.log.Warn("attach to non-live entity ignored",
			zap.Uint64("entity", uint64(id)), zap.String("component", t.String()))
		return false
	}
	if b.world != nil {
		w.mu.Unlock()
		w.log.Warn("component already attached",
			zap.Uint64("entity", uint64(id)),
			zap.Uint64("owner", uint64(b.owner)),
			zap.String("component", t.String()))
		return false
	}
	if t == spatialType {
		w.mu.Unlock()
		w.log.Warn("entity already has a Spatial", zap.Uint64("entity", uint64(id)))
		return false
	}
	ct := w.registry.Register(t)
	b.world, b.owner, b.spatial = w, id, w.spatialLocked(id)
	r := w.newRecord(c, id, ct)
	w.registry.store(ct).add(r)
	w.mu.Unlock()

	if a, ok := c.(Awaker); ok {
		w.invoke(r, "Awake", a.Awake)
	}

	if !r.hooks.has(lifecycleHooks) {
		return true
	}
	w.mu.Lock()
	if !r.destroyed() {
		w.lifecycle.attach(r)
	}
	w.mu.Unlock()
	return true
}

func (w *World) newRecord(c Component, id EntityID, ct ComponentType) *record {
	w.nextSeq++
	return &record{comp: c, owner: id, ctype: ct, seq: w.nextSeq, hooks: hooksOf(c)}
}

// detachLocked moves evicted records to their terminal state and returns the
// ones whose OnDestroy still has to run.
func (w *World) detachLocked(rs []*record) []*record {
	out := rs[:0:0]
	for _, r := range rs {
		w.lifecycle.detach(r)
		if r.markDestroyed() && r.hooks.has(hookDestroy) {
			out = append(out, r)
		}
	}
	return out
}

func (w *World) teardown(rs []*record) {
	if len(rs) == 0 {
		return
	}
	w.mu.Lock()
	if w.staging {
		w.staged = append(w.staged, rs...)
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	for _, r := range rs {
		w.invoke(r, "OnDestroy", r.comp.(Destroyer).OnDestroy)
	}
}

func (w *World) beginStaging() {
	w.mu.Lock()
	w.staging = true
	w.mu.Unlock()
}

// endStaging runs the OnDestroy hooks deferred by the parallel pass in the
// order their removals happened.
func (w *World) endStaging() {
	w.mu.Lock()
	w.staging = false
	rs := w.staged
	w.staged = nil
	w.mu.Unlock()
	w.teardown(rs)
}

// Stats is a point-in-time view of world occupancy.
type Stats struct {
	Entities       int
	Components     int
	ComponentTypes int
	Lifecycle      int
	PendingStart   int
	TimedRemovals  int
	HookPanics     uint64
}

func (w *World) Stats() Stats {
	w.mu.RLock()
	s := Stats{
		Entities:       w.pool.Len(),
		Components:     w.registry.componentCount(),
		ComponentTypes: w.registry.Len(),
		Lifecycle:      w.lifecycle.len(),
		PendingStart:   len(w.lifecycle.pending),
	}
	w.mu.RUnlock()
	s.TimedRemovals = w.timed.len()
	s.HookPanics = w.hookPanics.Load()
	return s
}

func isNilComponent(c Component) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
