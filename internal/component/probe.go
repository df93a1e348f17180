package component

import (
	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/mathx"
	"github.com/l1jgo/enginecore/internal/physics"
)

// GroundProbe casts a ray straight down from its entity every fixed step and
// records whether something within Distance was hit.
type GroundProbe struct {
	ecs.Base

	Physics  *physics.World
	Distance float64
	Group    uint32
	Mask     uint32

	Grounded bool
	Hit      physics.Hit
}

func NewGroundProbe(pw *physics.World, distance float64) *GroundProbe {
	return &GroundProbe{
		Physics:  pw,
		Distance: distance,
		Group:    physics.DefaultGroup,
		Mask:     physics.DefaultMask,
	}
}

func (p *GroundProbe) FixedUpdate(ecs.Time) {
	if p.Physics == nil {
		return
	}
	from := p.Spatial().Position
	to := from.Sub(mathx.Up3.Scale(p.Distance))
	p.Hit = p.Physics.RayTest(from, to, p.Group, p.Mask)
	p.Grounded = p.Hit.HasHit
}
