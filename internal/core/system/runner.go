package system

import (
	"slices"
	"sort"
	"sync"

	"github.com/l1jgo/enginecore/internal/core/ecs"
)

// Runner executes systems of one phase at a time, in registration order
// within the phase.
type Runner struct {
	mu      sync.Mutex
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.systems = append(r.systems, s)
	r.sorted = false
}

// TickPhase runs only the systems registered for phase.
func (r *Runner) TickPhase(phase Phase, t ecs.Time) {
	for _, s := range r.snapshot() {
		if s.Phase() == phase {
			s.Update(t)
		}
	}
}

func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.systems)
}

func (r *Runner) snapshot() []System {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sorted {
		// Sort a copy so a snapshot handed out earlier is never reordered.
		sorted := slices.Clone(r.systems)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Phase() < sorted[j].Phase()
		})
		r.systems = sorted
		r.sorted = true
	}
	return r.systems[:len(r.systems):len(r.systems)]
}
