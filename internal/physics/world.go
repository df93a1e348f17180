package physics

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/l1jgo/enginecore/internal/mathx"
	"go.uber.org/zap"
)

// ErrNonFinite reports a body whose state became NaN or infinite.
var ErrNonFinite = errors.New("non-finite body state")

// DefaultGravity is earth gravity along -Y.
var DefaultGravity = mathx.V3(0, -9.81, 0)

// contactSlop keeps resting bodies in contact between steps.
const contactSlop = 1e-4

type pairKey struct{ lo, hi uint64 }

func makePair(a, b uint64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// World integrates point-mass bodies under gravity and resolves sphere/sphere
// and sphere/plane contacts. All methods are safe for concurrent use.
type World struct {
	log *zap.Logger

	mu       sync.Mutex
	gravity  mathx.Vec3
	bodies   []*Body // ascending id
	byID     map[uint64]*Body
	nextID   uint64
	contacts map[pairKey]struct{}
	steps    uint64
}

func NewWorld(gravity mathx.Vec3, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		log:      log,
		gravity:  gravity,
		byID:     make(map[uint64]*Body, 64),
		contacts: make(map[pairKey]struct{}),
	}
}

func (w *World) Gravity() mathx.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gravity
}

// SetGravity takes effect from the next step.
func (w *World) SetGravity(g mathx.Vec3) {
	w.mu.Lock()
	w.gravity = g
	w.mu.Unlock()
}

// AddBody assigns b an ID and inserts it into the simulation.
func (w *World) AddBody(b *Body) error {
	if b == nil {
		return errors.New("add body: nil")
	}
	if !b.Position.IsFinite() || !b.Velocity.IsFinite() {
		return fmt.Errorf("add body: %w", ErrNonFinite)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if b.id != 0 {
		return fmt.Errorf("add body: body %d already in a world", b.id)
	}
	if b.LinearFactor == mathx.Zero3 {
		b.LinearFactor = mathx.One3
	}
	w.nextID++
	b.id = w.nextID
	w.bodies = append(w.bodies, b)
	w.byID[b.id] = b
	w.log.Debug("body added",
		zap.Uint64("body", b.id),
		zap.Stringer("shape", b.Shape.Kind),
		zap.Bool("static", b.Static),
	)
	return nil
}

// RemoveBody drops b and its contacts. Removing a body twice is a no-op.
func (w *World) RemoveBody(b *Body) {
	if b == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.byID[b.id]; !ok {
		return
	}
	delete(w.byID, b.id)
	if i := slices.Index(w.bodies, b); i >= 0 {
		w.bodies = slices.Delete(w.bodies, i, i+1)
	}
	for k := range w.contacts {
		if k.lo == b.id || k.hi == b.id {
			delete(w.contacts, k)
		}
	}
	b.id = 0
}

func (w *World) BodyCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bodies)
}

// State returns b's current position and velocity.
func (w *World) State(b *Body) (pos, vel mathx.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return b.Position, b.Velocity
}

// Teleport moves b and clears its velocity.
func (w *World) Teleport(b *Body, pos mathx.Vec3) {
	w.mu.Lock()
	b.Position, b.Velocity = pos, mathx.Zero3
	w.mu.Unlock()
}

func (w *World) SetVelocity(b *Body, v mathx.Vec3) {
	w.mu.Lock()
	b.Velocity = v
	w.mu.Unlock()
}

// ApplyForce accumulates a force applied over the next step.
func (w *World) ApplyForce(b *Body, f mathx.Vec3) {
	w.mu.Lock()
	b.force = b.force.Add(f)
	w.mu.Unlock()
}

// ApplyImpulse changes velocity immediately.
func (w *World) ApplyImpulse(b *Body, j mathx.Vec3) {
	w.mu.Lock()
	b.Velocity = b.Velocity.Add(j.Scale(b.invMass()))
	w.mu.Unlock()
}

// StepSimulation integrates dt seconds, then detects and resolves contacts.
func (w *World) StepSimulation(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("step simulation: invalid dt %v", dt)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range w.bodies {
		if !b.dynamic() {
			b.force = mathx.Zero3
			continue
		}
		acc := w.gravity.Add(b.force.Scale(1 / b.Mass))
		b.Velocity = b.Velocity.Add(acc.Scale(dt)).Mul(b.LinearFactor)
		b.Position = b.Position.Add(b.Velocity.Scale(dt))
		b.force = mathx.Zero3
		if !b.Position.IsFinite() || !b.Velocity.IsFinite() {
			return fmt.Errorf("step simulation: body %d: %w", b.id, ErrNonFinite)
		}
	}

	contacts := make(map[pairKey]struct{}, len(w.contacts))
	for i, a := range w.bodies {
		for _, b := range w.bodies[i+1:] {
			if !a.dynamic() && !b.dynamic() {
				continue
			}
			if !collides(a.Group, a.Mask, b.Group, b.Mask) {
				continue
			}
			if resolve(a, b) {
				contacts[makePair(a.id, b.id)] = struct{}{}
			}
		}
	}
	w.contacts = contacts
	w.steps++
	return nil
}

// Contacts returns the bodies touching b after the last step, by ascending ID.
func (w *World) Contacts(b *Body) []*Body {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*Body
	for k := range w.contacts {
		var other uint64
		switch b.id {
		case k.lo:
			other = k.hi
		case k.hi:
			other = k.lo
		default:
			continue
		}
		if o, ok := w.byID[other]; ok {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(x, y *Body) int { return cmp.Compare(x.id, y.id) })
	return out
}

// Steps is the number of completed simulation steps.
func (w *World) Steps() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

// ContactCount is the number of touching pairs after the last step.
func (w *World) ContactCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.contacts)
}

// resolve reports whether a and b touch and, if so, separates them and
// applies restitution and friction impulses.
func resolve(a, b *Body) bool {
	switch {
	case a.Shape.Kind == ShapeSphere && b.Shape.Kind == ShapeSphere:
		d := b.Position.Sub(a.Position)
		dist := d.Len()
		pen := a.Shape.Radius + b.Shape.Radius - dist
		if pen < -contactSlop {
			return false
		}
		n := mathx.Up3
		if dist > 1e-12 {
			n = d.Scale(1 / dist)
		}
		separate(a, b, n, pen)
		return true
	case a.Shape.Kind == ShapePlane && b.Shape.Kind == ShapeSphere:
		return spherePlane(b, a)
	case a.Shape.Kind == ShapeSphere && b.Shape.Kind == ShapePlane:
		return spherePlane(a, b)
	}
	return false
}

func spherePlane(s, p *Body) bool {
	n := p.Shape.Normal
	dist := n.Dot(s.Position) - p.Shape.Offset
	pen := s.Shape.Radius - dist
	if pen < -contactSlop {
		return false
	}
	separate(p, s, n, pen)
	return true
}

// separate pushes a and b apart along n, which points from a to b.
func separate(a, b *Body, n mathx.Vec3, pen float64) {
	ia, ib := a.invMass(), b.invMass()
	total := ia + ib
	if total == 0 {
		return
	}
	if pen > 0 {
		a.Position = a.Position.Sub(n.Scale(pen * ia / total))
		b.Position = b.Position.Add(n.Scale(pen * ib / total))
	}

	rel := b.Velocity.Sub(a.Velocity)
	vn := rel.Dot(n)
	if vn >= 0 {
		return
	}
	e := a.Restitution * b.Restitution
	j := -(1 + e) * vn / total
	a.Velocity = a.Velocity.Sub(n.Scale(j * ia))
	b.Velocity = b.Velocity.Add(n.Scale(j * ib))

	rel = b.Velocity.Sub(a.Velocity)
	tan := rel.Sub(n.Scale(rel.Dot(n)))
	tl := tan.Len()
	if tl < 1e-12 {
		return
	}
	mu := math.Sqrt(a.Friction * b.Friction)
	jt := math.Min(tl/total, j*mu)
	dir := tan.Scale(1 / tl)
	a.Velocity = a.Velocity.Add(dir.Scale(jt * ia))
	b.Velocity = b.Velocity.Sub(dir.Scale(jt * ib))
}
