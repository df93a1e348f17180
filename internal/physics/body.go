package physics

import "github.com/l1jgo/enginecore/internal/mathx"

// ShapeKind selects the collision primitive of a Body.
type ShapeKind uint8

const (
	ShapeSphere ShapeKind = iota
	ShapePlane
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeSphere:
		return "sphere"
	case ShapePlane:
		return "plane"
	}
	return "unknown"
}

// Shape is a collision primitive. A sphere is centred on the body position; a
// plane is the set of points p with Normal·p = Offset and is always static.
type Shape struct {
	Kind   ShapeKind
	Radius float64
	Normal mathx.Vec3
	Offset float64
}

func Sphere(radius float64) Shape { return Shape{Kind: ShapeSphere, Radius: radius} }

func Plane(normal mathx.Vec3, offset float64) Shape {
	return Shape{Kind: ShapePlane, Normal: normal.Normalize(), Offset: offset}
}

// Default body material and filter, matching a freshly constructed rigid body.
const (
	DefaultMass        = 70.0
	DefaultFriction    = 0.5
	DefaultRestitution = 0.5
	DefaultGroup       = 1
	DefaultMask        = 1
)

// Body is a simulated object. Fields other than the kinematic state are read
// by the simulator and may be set before AddBody; after that, mutate through
// the World so the simulation lock is held.
type Body struct {
	id uint64

	Shape       Shape
	Position    mathx.Vec3
	Velocity    mathx.Vec3
	Mass        float64
	Static      bool
	Friction    float64
	Restitution float64
	Group       uint32
	Mask        uint32

	// LinearFactor scales velocity per axis; zero components freeze motion.
	// AddBody replaces an all-zero factor with One3.
	LinearFactor mathx.Vec3

	// UserData links the body back to its owner, usually a component.
	UserData any

	force mathx.Vec3
}

// NewBody returns a dynamic body with default material and filter.
func NewBody(shape Shape, pos mathx.Vec3) *Body {
	return &Body{
		Shape:        shape,
		Position:     pos,
		Mass:         DefaultMass,
		Static:       shape.Kind == ShapePlane,
		Friction:     DefaultFriction,
		Restitution:  DefaultRestitution,
		Group:        DefaultGroup,
		Mask:         DefaultMask,
		LinearFactor: mathx.One3,
	}
}

// ID is assigned by AddBody; zero means the body is not in a world.
func (b *Body) ID() uint64 { return b.id }

func (b *Body) dynamic() bool { return !b.Static && b.Mass > 0 }

func (b *Body) invMass() float64 {
	if !b.dynamic() {
		return 0
	}
	return 1 / b.Mass
}

// collides reports whether two filters accept each other.
func collides(aGroup, aMask, bGroup, bMask uint32) bool {
	return aGroup&bMask != 0 && bGroup&aMask != 0
}
