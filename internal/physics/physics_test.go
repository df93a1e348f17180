package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/l1jgo/enginecore/internal/mathx"
	"go.uber.org/zap/zaptest"
)

const dt = 1.0 / 60

func stepN(t *testing.T, w *World, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := w.StepSimulation(dt); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func ground(t *testing.T, w *World) *Body {
	t.Helper()
	g := NewBody(Plane(mathx.Up3, 0), mathx.Zero3)
	if err := w.AddBody(g); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestFreeFall(t *testing.T) {
	w := NewWorld(DefaultGravity, zaptest.NewLogger(t))
	b := NewBody(Sphere(0.5), mathx.V3(0, 5, 0))
	if err := w.AddBody(b); err != nil {
		t.Fatal(err)
	}
	stepN(t, w, 60)

	pos, vel := w.State(b)
	if math.Abs(vel.Y+9.81) > 1e-9 {
		t.Errorf("vy = %v, want -9.81", vel.Y)
	}
	// Semi-implicit Euler: y = y0 - g*dt^2*(1+2+...+60).
	want := 5 - 9.81*dt*dt*1830
	if math.Abs(pos.Y-want) > 1e-9 {
		t.Errorf("y = %v, want %v", pos.Y, want)
	}
	if w.Steps() != 60 {
		t.Errorf("steps = %d", w.Steps())
	}
}

func TestSphereSettlesOnPlane(t *testing.T) {
	w := NewWorld(DefaultGravity, nil)
	g := ground(t, w)
	b := NewBody(Sphere(0.5), mathx.V3(0, 3, 0))
	w.AddBody(b)
	stepN(t, w, 300)

	pos, vel := w.State(b)
	if math.Abs(pos.Y-0.5) > 0.05 {
		t.Errorf("resting height = %v, want ~0.5", pos.Y)
	}
	if math.Abs(vel.Y) > 0.5 {
		t.Errorf("still moving: %v", vel)
	}
	cs := w.Contacts(b)
	if len(cs) != 1 || cs[0] != g {
		t.Errorf("contacts = %v", cs)
	}
	if w.ContactCount() != 1 {
		t.Errorf("pairs = %d", w.ContactCount())
	}
}

func TestFilterSkipsCollision(t *testing.T) {
	w := NewWorld(DefaultGravity, nil)
	ground(t, w)
	b := NewBody(Sphere(0.5), mathx.V3(0, 1, 0))
	b.Mask = 1 << 3
	w.AddBody(b)
	stepN(t, w, 120)

	if pos, _ := w.State(b); pos.Y > 0 {
		t.Errorf("filtered sphere stopped at %v", pos.Y)
	}
	if len(w.Contacts(b)) != 0 {
		t.Error("filtered pair reported as contact")
	}
}

func TestLinearFactorFreezesAxis(t *testing.T) {
	w := NewWorld(DefaultGravity, nil)
	b := NewBody(Sphere(1), mathx.V3(0, 10, 0))
	b.LinearFactor = mathx.V3(1, 0, 1)
	b.Velocity = mathx.V3(1, 0, 0)
	w.AddBody(b)
	stepN(t, w, 60)

	pos, _ := w.State(b)
	if pos.Y != 10 {
		t.Errorf("frozen axis moved to %v", pos.Y)
	}
	if math.Abs(pos.X-1) > 1e-9 {
		t.Errorf("x = %v, want 1", pos.X)
	}
}

func TestSpheresBounceApart(t *testing.T) {
	w := NewWorld(mathx.Zero3, nil)
	a := NewBody(Sphere(0.5), mathx.V3(-2, 0, 0))
	b := NewBody(Sphere(0.5), mathx.V3(2, 0, 0))
	a.Velocity, b.Velocity = mathx.V3(1, 0, 0), mathx.V3(-1, 0, 0)
	w.AddBody(a)
	w.AddBody(b)
	stepN(t, w, 240)

	pa, va := w.State(a)
	pb, vb := w.State(b)
	if va.X >= 0 || vb.X <= 0 {
		t.Errorf("velocities after impact: %v %v", va, vb)
	}
	if math.Abs(va.X+vb.X) > 1e-9 || math.Abs(pa.X+pb.X) > 1e-9 {
		t.Errorf("symmetric impact lost symmetry: %v %v", pa, pb)
	}
}

func TestForcesAndImpulses(t *testing.T) {
	w := NewWorld(mathx.Zero3, nil)
	b := NewBody(Sphere(1), mathx.Zero3)
	b.Mass = 2
	w.AddBody(b)

	w.ApplyImpulse(b, mathx.V3(4, 0, 0))
	if _, v := w.State(b); v.X != 2 {
		t.Errorf("impulse vx = %v", v.X)
	}
	w.SetVelocity(b, mathx.Zero3)
	w.ApplyForce(b, mathx.V3(0, 120, 0))
	stepN(t, w, 1)
	if _, v := w.State(b); math.Abs(v.Y-1) > 1e-12 {
		t.Errorf("force vy = %v, want 1", v.Y)
	}
	stepN(t, w, 1)
	if _, v := w.State(b); math.Abs(v.Y-1) > 1e-12 {
		t.Error("force was not cleared after one step")
	}
	w.Teleport(b, mathx.V3(7, 7, 7))
	if p, v := w.State(b); p != mathx.V3(7, 7, 7) || v != mathx.Zero3 {
		t.Errorf("teleport: %v %v", p, v)
	}
}

func TestNonFiniteIsFatal(t *testing.T) {
	w := NewWorld(DefaultGravity, nil)
	if err := w.AddBody(NewBody(Sphere(1), mathx.V3(math.NaN(), 0, 0))); !errors.Is(err, ErrNonFinite) {
		t.Errorf("AddBody err = %v", err)
	}
	b := NewBody(Sphere(1), mathx.Zero3)
	w.AddBody(b)
	w.SetVelocity(b, mathx.V3(math.Inf(1), 0, 0))
	if err := w.StepSimulation(dt); !errors.Is(err, ErrNonFinite) {
		t.Errorf("step err = %v", err)
	}
	if err := w.StepSimulation(0); err == nil {
		t.Error("zero dt accepted")
	}
}

func TestAddRemoveBody(t *testing.T) {
	w := NewWorld(DefaultGravity, nil)
	g := ground(t, w)
	b := NewBody(Sphere(0.5), mathx.V3(0, 0.5, 0))
	w.AddBody(b)
	if err := w.AddBody(b); err == nil {
		t.Error("body added twice")
	}
	stepN(t, w, 1)
	if w.ContactCount() != 1 {
		t.Fatalf("pairs = %d", w.ContactCount())
	}

	w.RemoveBody(b)
	w.RemoveBody(b)
	w.RemoveBody(nil)
	if w.BodyCount() != 1 || w.ContactCount() != 0 || b.ID() != 0 {
		t.Errorf("after remove: bodies=%d pairs=%d id=%d", w.BodyCount(), w.ContactCount(), b.ID())
	}
	if len(w.Contacts(g)) != 0 {
		t.Error("ground kept contact with removed body")
	}
}

func TestRayTestClosest(t *testing.T) {
	w := NewWorld(DefaultGravity, nil)
	near := NewBody(Sphere(1), mathx.V3(0, 0, -5))
	far := NewBody(Sphere(1), mathx.V3(0, 0, -10))
	near.Group, near.Mask = 2, ^uint32(0)
	far.Group, far.Mask = 4, ^uint32(0)
	w.AddBody(far)
	w.AddBody(near)

	h := w.RayTest(mathx.Zero3, mathx.V3(0, 0, -20), 1, ^uint32(0))
	if !h.HasHit || h.Body != near {
		t.Fatalf("hit = %+v", h)
	}
	if !h.Point.ApproxEq(mathx.V3(0, 0, -4)) || !h.Normal.ApproxEq(mathx.V3(0, 0, 1)) {
		t.Errorf("point=%v normal=%v", h.Point, h.Normal)
	}
	if math.Abs(h.Fraction-0.2) > 1e-12 {
		t.Errorf("fraction = %v", h.Fraction)
	}

	h = w.RayTest(mathx.Zero3, mathx.V3(0, 0, -20), 1, 4)
	if h.Body != far {
		t.Errorf("mask did not skip near body: %+v", h)
	}
	if h = w.RayTest(mathx.Zero3, mathx.V3(0, 0, -3), 1, ^uint32(0)); h.HasHit {
		t.Errorf("short ray hit %+v", h)
	}
	if h = w.RayTest(mathx.V3(0, 0, -5), mathx.V3(0, 0, -7), 1, 2); h.HasHit {
		t.Error("ray starting inside a sphere hit it")
	}
	if h = w.RayTest(mathx.Zero3, mathx.Zero3, 1, ^uint32(0)); h.HasHit {
		t.Error("degenerate ray hit")
	}
}

func TestRayTestPlane(t *testing.T) {
	w := NewWorld(DefaultGravity, nil)
	g := ground(t, w)

	h := w.RayTest(mathx.V3(1, 10, 2), mathx.V3(1, -10, 2), DefaultGroup, DefaultMask)
	if !h.HasHit || h.Body != g || !h.Point.ApproxEq(mathx.V3(1, 0, 2)) || h.Normal != mathx.Up3 {
		t.Errorf("hit = %+v", h)
	}
	if h = w.RayTest(mathx.V3(0, -10, 0), mathx.V3(0, 10, 0), DefaultGroup, DefaultMask); h.HasHit {
		t.Error("plane hit from behind")
	}
}

func TestCollisionMask(t *testing.T) {
	if m := CollisionMask([]int{0, 2, 5}, true); m != 0b100101 {
		t.Errorf("include = %b", m)
	}
	if m := CollisionMask([]int{0, 1}, false); m != ^uint32(0)&^0b11 {
		t.Errorf("exclude = %b", m)
	}
	if m := CollisionMask([]int{-1, 40}, true); m != 0 {
		t.Errorf("out of range = %b", m)
	}
}

func TestParseLayerTable(t *testing.T) {
	raw := []byte(`
- name: default
  group: 0
- name: ground
  group: 1
  note: static level geometry
- name: player
  group: 4
`)
	lt, err := ParseLayerTable(raw)
	if err != nil {
		t.Fatal(err)
	}
	if lt.Count() != 3 || lt.Bit("player") != 1<<4 || lt.Bit("nope") != 0 {
		t.Errorf("table = %+v", lt)
	}
	if g, ok := lt.Group("ground"); !ok || g != 1 {
		t.Errorf("ground = %d, %v", g, ok)
	}
	m, err := lt.Mask("ground", "player")
	if err != nil || m != 0b10010 {
		t.Errorf("mask = %b, %v", m, err)
	}
	if _, err := lt.Mask("ghost"); err == nil {
		t.Error("unknown layer accepted")
	}

	bad := []string{
		"- name: a\n  group: 1\n- name: a\n  group: 2\n",
		"- name: a\n  group: 1\n- name: b\n  group: 1\n",
		"- name: a\n  group: 32\n",
		"- group: 3\n",
		"not: [a list",
	}
	for _, b := range bad {
		if _, err := ParseLayerTable([]byte(b)); err == nil {
			t.Errorf("accepted %q", b)
		}
	}
}
