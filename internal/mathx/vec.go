// Package mathx holds the small value types shared by the runtime, the physics
// collaborator and the renderer. Right-handed, column vectors, row-major storage.
package mathx

import "math"

type Vec3 struct {
	X, Y, Z float64
}

var (
	Zero3    = Vec3{}
	One3     = Vec3{1, 1, 1}
	Up3      = Vec3{0, 1, 0}
	Right3   = Vec3{1, 0, 0}
	Forward3 = Vec3{0, 0, -1}
)

func V3(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Mul(o Vec3) Vec3      { return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64         { return math.Sqrt(v.Dot(v)) }
func (v Vec3) LenSq() float64       { return v.Dot(v) }
func (v Vec3) Neg() Vec3            { return Vec3{-v.X, -v.Y, -v.Z} }
func (v Vec3) Dist(o Vec3) float64  { return v.Sub(o).Len() }
func (v Vec3) ApproxEq(o Vec3) bool { return v.Sub(o).LenSq() < 1e-12 }
func (v Vec3) IsFinite() bool       { return finite(v.X) && finite(v.Y) && finite(v.Z) }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Normalize returns the unit vector, or zero for a zero-length input.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Lerp interpolates linearly between v and o.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
