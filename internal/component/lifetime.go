package component

import "github.com/l1jgo/enginecore/internal/core/ecs"

// Lifetime removes its entity Seconds of fixed-step time after it starts.
type Lifetime struct {
	ecs.Base
	Seconds float64
}

func (l *Lifetime) Start() {
	l.World().RemoveEntityTimed(l.Entity(), l.Seconds)
}

// Remaining reports the time left, or false once nothing is scheduled.
func (l *Lifetime) Remaining() (float64, bool) {
	return l.World().PendingRemoval(l.Entity())
}
