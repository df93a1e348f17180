package ecs

import (
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// lifecycleList holds lifecycle-capable records per component type plus the
// deferred-start queue. Guarded by World.mu.
type lifecycleList struct {
	byType  [][]*record
	flat    []*record // cached snapshot; nil when stale
	pending []*record
	size    int
}

func newLifecycleList() *lifecycleList {
	return &lifecycleList{byType: make([][]*record, 0, 32)}
}

func (l *lifecycleList) attach(r *record) {
	for int(r.ctype) >= len(l.byType) {
		l.byType = append(l.byType, nil)
	}
	l.byType[r.ctype] = append(l.byType[r.ctype], r)
	l.pending = append(l.pending, r)
	l.flat = nil
	l.size++
}

func (l *lifecycleList) detach(r *record) {
	if int(r.ctype) >= len(l.byType) {
		return
	}
	list := l.byType[r.ctype]
	i := slices.Index(list, r)
	if i < 0 {
		return
	}
	l.byType[r.ctype] = slices.Delete(list, i, i+1)
	l.flat = nil
	l.size--
}

// snapshot returns an immutable view ordered by component type then attach
// order. Mutations after the call do not affect the returned slice.
func (l *lifecycleList) snapshot() []*record {
	if l.flat == nil {
		flat := make([]*record, 0, l.size)
		for _, list := range l.byType {
			flat = append(flat, list...)
		}
		l.flat = flat
	}
	return l.flat
}

func (l *lifecycleList) takePending() []*record {
	p := l.pending
	l.pending = nil
	return p
}

func (l *lifecycleList) len() int { return l.size }

func (w *World) lifecycleSnapshot() []*record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lifecycle.snapshot()
}

// MainUpdate is the variable-step pass: start every pending component, including
// ones added by Start hooks during this drain, then call Update on every
// started component. Components attached during the Update pass wait for the
// next frame.
func (w *World) MainUpdate(t Time) {
	w.drainStarts()
	w.dispatch(w.lifecycleSnapshot(), hookUpdate, true, w.workers, "Update", func(r *record) {
		r.comp.(Updater).Update(t)
	})
}

// FixedUpdate is one fixed-step pass: timed removals are advanced by t.Delta,
// then every started component receives FixedUpdate.
func (w *World) FixedUpdate(t Time) {
	w.processTimedRemovals(t.Delta)
	w.dispatch(w.lifecycleSnapshot(), hookFixedUpdate, true, w.workers, "FixedUpdate", func(r *record) {
		r.comp.(FixedUpdater).FixedUpdate(t)
	})
}

// Render calls Render on every live renderable component whether or not it has
// been started, so a component's visual state shows from its first frame.
func (w *World) Render(ctx RenderContext) {
	w.dispatch(w.lifecycleSnapshot(), hookRender, false, 1, "Render", func(r *record) {
		r.comp.(Renderable).Render(ctx)
	})
}

// DrawGUI runs after Render with the same start-state rule.
func (w *World) DrawGUI(t Time) {
	w.dispatch(w.lifecycleSnapshot(), hookGUI, false, 1, "DrawGUI", func(r *record) {
		r.comp.(GUIDrawer).DrawGUI(t)
	})
}

// RenderItem pairs a renderable component with its owner.
type RenderItem struct {
	Entity    EntityID
	Component Renderable
}

// Renderables enumerates live render-capable components in dispatch order.
func (w *World) Renderables() []RenderItem {
	snap := w.lifecycleSnapshot()
	out := make([]RenderItem, 0, len(snap))
	for _, r := range snap {
		if r.hooks.has(hookRender) && !r.destroyed() {
			out = append(out, RenderItem{Entity: r.owner, Component: r.comp.(Renderable)})
		}
	}
	return out
}

func (w *World) drainStarts() {
	for {
		w.mu.Lock()
		batch := w.lifecycle.takePending()
		w.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, r := range batch {
			if !r.state.CompareAndSwap(statePendingStart, stateStarted) {
				continue
			}
			if s, ok := r.comp.(Starter); ok {
				w.invoke(r, "Start", s.Start)
			}
		}
	}
}

func (w *World) dispatch(snap []*record, hook hookSet, needStarted bool, workers int, name string, call func(*record)) {
	targets := make([]*record, 0, len(snap))
	for _, r := range snap {
		if r.hooks.has(hook) {
			targets = append(targets, r)
		}
	}
	run := func(r *record) {
		// Re-checked per call: an earlier hook in this pass may have removed it.
		if r.destroyed() || (needStarted && !r.started()) {
			return
		}
		w.invoke(r, name, func() { call(r) })
	}

	if workers <= 1 || len(targets) < 2 {
		for _, r := range targets {
			run(r)
		}
		return
	}
	// Components of one entity run on the same goroutine, in dispatch order,
	// so they may share their Spatial without locking.
	w.beginStaging()
	defer w.endStaging()
	var g errgroup.Group
	g.SetLimit(workers)
	for _, group := range groupByOwner(targets) {
		g.Go(func() error {
			for _, r := range group {
				run(r)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// groupByOwner partitions records by entity, keeping first-seen entity order
// and the original order within each entity.
func groupByOwner(rs []*record) [][]*record {
	index := make(map[EntityID]int, len(rs))
	var groups [][]*record
	for _, r := range rs {
		i, ok := index[r.owner]
		if !ok {
			i = len(groups)
			index[r.owner] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}

// invoke isolates one hook call: a panic is logged and counted, and dispatch of
// sibling components continues.
func (w *World) invoke(r *record, hook string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			w.hookPanics.Add(1)
			w.log.Error("component hook panicked",
				zap.String("hook", hook),
				zap.String("component", w.componentName(r)),
				zap.Uint64("entity", uint64(r.owner)),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}

func (w *World) componentName(r *record) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.registry.Name(r.ctype)
}
