package component

import (
	"cmp"
	"slices"

	"github.com/l1jgo/enginecore/internal/core/ecs"
	"github.com/l1jgo/enginecore/internal/core/event"
	"github.com/l1jgo/enginecore/internal/mathx"
	"github.com/l1jgo/enginecore/internal/physics"
	"go.uber.org/zap"
)

// Collision is passed to collision observers.
type Collision struct {
	Self  *RigidBody
	Other *RigidBody
}

// RigidBody puts its entity into a physics world. The body is created in
// Start from the entity's Spatial; every fixed step the Spatial position is
// copied back from the simulation and contact changes are reported through
// the collision observers.
type RigidBody struct {
	ecs.Base

	Physics      *physics.World
	Shape        physics.Shape
	Mass         float64
	Friction     float64
	Restitution  float64
	Static       bool
	Group        uint32
	Mask         uint32
	Velocity     mathx.Vec3 // initial velocity
	LinearFactor mathx.Vec3

	OnCollisionEnter event.Observers[Collision]
	OnCollisionStay  event.Observers[Collision]
	OnCollisionExit  event.Observers[Collision]

	body     *physics.Body
	touching map[*RigidBody]struct{}
}

// NewRigidBody returns a dynamic body description with default material and
// filter.
func NewRigidBody(pw *physics.World, shape physics.Shape) *RigidBody {
	return &RigidBody{
		Physics:      pw,
		Shape:        shape,
		Mass:         physics.DefaultMass,
		Friction:     physics.DefaultFriction,
		Restitution:  physics.DefaultRestitution,
		Static:       shape.Kind == physics.ShapePlane,
		Group:        physics.DefaultGroup,
		Mask:         physics.DefaultMask,
		LinearFactor: mathx.One3,
	}
}

func (rb *RigidBody) Start() {
	if rb.Physics == nil {
		rb.World().Logger().Warn("rigid body without physics world", zap.Uint64("entity", uint64(rb.Entity())))
		return
	}
	b := physics.NewBody(rb.Shape, rb.Spatial().Position)
	b.Mass = rb.Mass
	b.Friction = rb.Friction
	b.Restitution = rb.Restitution
	b.Static = rb.Static
	b.Group = rb.Group
	b.Mask = rb.Mask
	b.Velocity = rb.Velocity
	b.LinearFactor = rb.LinearFactor
	b.UserData = rb
	if err := rb.Physics.AddBody(b); err != nil {
		rb.World().Logger().Error("add rigid body", zap.Uint64("entity", uint64(rb.Entity())), zap.Error(err))
		return
	}
	rb.body = b
	rb.touching = make(map[*RigidBody]struct{})
}

func (rb *RigidBody) FixedUpdate(ecs.Time) {
	if rb.body == nil {
		return
	}
	pos, _ := rb.Physics.State(rb.body)
	rb.Spatial().Position = pos
	rb.checkCollisions()
}

func (rb *RigidBody) OnDestroy() {
	rb.OnCollisionEnter.Clear()
	rb.OnCollisionStay.Clear()
	rb.OnCollisionExit.Clear()
	rb.touching = nil
	if rb.body != nil {
		rb.Physics.RemoveBody(rb.body)
		rb.body = nil
	}
}

// checkCollisions diffs the current contacts against the previous step:
// enter for new partners, stay for continuing ones, exit for lost ones.
func (rb *RigidBody) checkCollisions() {
	if rb.OnCollisionEnter.Len() == 0 && rb.OnCollisionStay.Len() == 0 && rb.OnCollisionExit.Len() == 0 {
		return
	}
	current := make(map[*RigidBody]struct{})
	var entered, stayed, exited []*RigidBody
	for _, b := range rb.Physics.Contacts(rb.body) {
		other, ok := b.UserData.(*RigidBody)
		if !ok {
			continue
		}
		current[other] = struct{}{}
		if _, was := rb.touching[other]; was {
			stayed = append(stayed, other)
		} else {
			entered = append(entered, other)
		}
	}
	for other := range rb.touching {
		if _, still := current[other]; !still {
			exited = append(exited, other)
		}
	}
	slices.SortFunc(exited, byBodyID)
	rb.touching = current

	for _, o := range entered {
		rb.OnCollisionEnter.Notify(Collision{Self: rb, Other: o})
	}
	for _, o := range stayed {
		rb.OnCollisionStay.Notify(Collision{Self: rb, Other: o})
	}
	for _, o := range exited {
		rb.OnCollisionExit.Notify(Collision{Self: rb, Other: o})
	}
}

// byBodyID orders bodies that left the world (ID 0) first.
func byBodyID(a, b *RigidBody) int {
	return cmp.Compare(a.bodyID(), b.bodyID())
}

func (rb *RigidBody) bodyID() uint64 {
	if rb.body == nil {
		return 0
	}
	return rb.body.ID()
}

// Body is the simulated body, or nil before Start.
func (rb *RigidBody) Body() *physics.Body { return rb.body }

func (rb *RigidBody) CurrentVelocity() mathx.Vec3 {
	if rb.body == nil {
		return rb.Velocity
	}
	_, v := rb.Physics.State(rb.body)
	return v
}

func (rb *RigidBody) SetVelocity(v mathx.Vec3) {
	if rb.body == nil {
		rb.Velocity = v
		return
	}
	rb.Physics.SetVelocity(rb.body, v)
}

func (rb *RigidBody) ApplyForce(f mathx.Vec3) {
	if rb.body != nil {
		rb.Physics.ApplyForce(rb.body, f)
	}
}

func (rb *RigidBody) ApplyImpulse(j mathx.Vec3) {
	if rb.body != nil {
		rb.Physics.ApplyImpulse(rb.body, j)
	}
}

// Teleport moves both the body and the Spatial and stops the body.
func (rb *RigidBody) Teleport(pos mathx.Vec3) {
	rb.Spatial().Position = pos
	if rb.body != nil {
		rb.Physics.Teleport(rb.body, pos)
	}
}
