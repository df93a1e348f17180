package ecs

import (
	"reflect"

	"github.com/l1jgo/enginecore/internal/mathx"
)

// Spatial is the position/rotation/scale every live entity owns from creation.
// It cannot be removed on its own; it goes away with the entity.
type Spatial struct {
	Base
	Position mathx.Vec3
	Rotation mathx.Quat
	Scale    mathx.Vec3
}

var spatialType = reflect.TypeFor[*Spatial]()

func NewSpatial() *Spatial {
	return &Spatial{
		Rotation: mathx.IdentityQuat(),
		Scale:    mathx.One3,
	}
}

// WorldMatrix returns Translation * Rotation * Scale.
func (s *Spatial) WorldMatrix() mathx.Mat4 {
	return mathx.Translation(s.Position).Mul(mathx.Rotation(s.Rotation)).Mul(mathx.Scaling(s.Scale))
}

func (s *Spatial) Forward() mathx.Vec3 { return s.Rotation.Rotate(mathx.Forward3) }
func (s *Spatial) Right() mathx.Vec3   { return s.Rotation.Rotate(mathx.Right3) }
func (s *Spatial) Up() mathx.Vec3      { return s.Rotation.Rotate(mathx.Up3) }

func (s *Spatial) Translate(d mathx.Vec3) {
	s.Position = s.Position.Add(d)
}

func (s *Spatial) Rotate(q mathx.Quat) {
	s.Rotation = q.Mul(s.Rotation).Normalize()
}
