package physics

import (
	"math"

	"github.com/l1jgo/enginecore/internal/mathx"
)

// Hit is the closest intersection found by RayTest. HasHit is false and the
// other fields are zero when nothing was hit.
type Hit struct {
	HasHit   bool
	Point    mathx.Vec3
	Normal   mathx.Vec3
	Body     *Body
	Fraction float64 // 0 at from, 1 at to
}

// RayTest casts the segment from→to and returns the closest body whose filter
// accepts group/mask. Rays starting inside a sphere do not hit it; planes are
// hit only from their front side.
func (w *World) RayTest(from, to mathx.Vec3, group, mask uint32) Hit {
	dir := to.Sub(from)
	if dir.LenSq() == 0 {
		return Hit{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	best := Hit{Fraction: math.Inf(1)}
	for _, b := range w.bodies {
		if !collides(group, mask, b.Group, b.Mask) {
			continue
		}
		t, n, ok := intersect(b, from, dir)
		if !ok || t >= best.Fraction {
			continue
		}
		best = Hit{HasHit: true, Point: from.Add(dir.Scale(t)), Normal: n, Body: b, Fraction: t}
	}
	if !best.HasHit {
		return Hit{}
	}
	return best
}

func intersect(b *Body, from, dir mathx.Vec3) (float64, mathx.Vec3, bool) {
	switch b.Shape.Kind {
	case ShapeSphere:
		oc := from.Sub(b.Position)
		r := b.Shape.Radius
		c := oc.LenSq() - r*r
		if c <= 0 {
			return 0, mathx.Vec3{}, false
		}
		a := dir.LenSq()
		half := oc.Dot(dir)
		disc := half*half - a*c
		if disc < 0 {
			return 0, mathx.Vec3{}, false
		}
		t := (-half - math.Sqrt(disc)) / a
		if t < 0 || t > 1 {
			return 0, mathx.Vec3{}, false
		}
		p := from.Add(dir.Scale(t))
		return t, p.Sub(b.Position).Normalize(), true
	case ShapePlane:
		n := b.Shape.Normal
		denom := n.Dot(dir)
		if denom >= 0 {
			return 0, mathx.Vec3{}, false
		}
		t := (b.Shape.Offset - n.Dot(from)) / denom
		if t < 0 || t > 1 {
			return 0, mathx.Vec3{}, false
		}
		return t, n, true
	}
	return 0, mathx.Vec3{}, false
}
