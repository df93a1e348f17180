package component

import (
	"math"

	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/mathx"
)

// Camera produces the view and projection used by the render pass. With a
// Target set it follows that entity at Offset and looks at it; otherwise it
// looks along its Spatial's forward axis.
type Camera struct {
	ecs.Base

	FovY   float64 // radians
	Aspect float64
	Near   float64
	Far    float64

	Target ecs.EntityID
	Offset mathx.Vec3
}

func NewCamera(aspect float64) *Camera {
	return &Camera{
		FovY:   math.Pi / 4,
		Aspect: aspect,
		Near:   0.1,
		Far:    1000,
	}
}

// Follow makes the camera track id from offset.
func (c *Camera) Follow(id ecs.EntityID, offset mathx.Vec3) {
	c.Target, c.Offset = id, offset
}

// Update moves a following camera. A target that no longer exists is dropped.
func (c *Camera) Update(ecs.Time) {
	if c.Target.IsZero() {
		return
	}
	sp := c.World().Spatial(c.Target)
	if sp == nil {
		c.Target = 0
		return
	}
	c.Spatial().Position = sp.Position.Add(c.Offset)
}

// Matrices returns the view and projection for this frame.
func (c *Camera) Matrices() (view, projection mathx.Mat4) {
	eye := c.Spatial().Position
	at := eye.Add(c.Spatial().Forward())
	if !c.Target.IsZero() {
		if sp := c.World().Spatial(c.Target); sp != nil && !sp.Position.ApproxEq(eye) {
			at = sp.Position
		}
	}
	return mathx.LookAt(eye, at, mathx.Up3), mathx.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}
