package system

import "github.com/l1jgo/enginecore/internal/core/ecs"

// Phase defines where in the outer frame a system runs.
type Phase int

const (
	PhasePreUpdate Phase = iota // 0: deliver last frame's events
	PhaseVariable               // 1: input, camera look; before component Update
	PhaseFixed                  // 2: once per fixed step, after physics, before component FixedUpdate
	PhaseRender                 // 3: after component Render/DrawGUI, before the frame is presented
	PhaseCleanup                // 4: end of frame bookkeeping
)

func (p Phase) String() string {
	switch p {
	case PhasePreUpdate:
		return "pre-update"
	case PhaseVariable:
		return "variable"
	case PhaseFixed:
		return "fixed"
	case PhaseRender:
		return "render"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is an engine-level step that is not tied to an entity.
type System interface {
	Phase() Phase
	Update(t ecs.Time)
}

// Func adapts a function to System.
type Func struct {
	P  Phase
	Fn func(t ecs.Time)
}

func (f Func) Phase() Phase      { return f.P }
func (f Func) Update(t ecs.Time) { f.Fn(t) }
