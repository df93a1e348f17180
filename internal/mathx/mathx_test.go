package mathx

import (
	"math"
	"testing"
)

func TestQuatRotate(t *testing.T) {
	q := QuatAxisAngle(Up3, math.Pi/2)
	got := q.Rotate(Right3)
	if !got.ApproxEq(V3(0, 0, -1)) {
		t.Errorf("rotate right 90deg around up = %+v, want (0,0,-1)", got)
	}
	if !IdentityQuat().Rotate(V3(1, 2, 3)).ApproxEq(V3(1, 2, 3)) {
		t.Error("identity rotation changed the vector")
	}
}

func TestRotationMatchesQuat(t *testing.T) {
	q := QuatAxisAngle(V3(1, 1, 0), 0.7)
	v := V3(0.3, -2, 5)
	want := q.Rotate(v)
	got, ok := Rotation(q).TransformPoint(v)
	if !ok || !got.ApproxEq(want) {
		t.Errorf("matrix rotation = %+v, quaternion rotation = %+v", got, want)
	}
}

func TestLookAtPerspective(t *testing.T) {
	view := LookAt(V3(0, 0, 10), Zero3, Up3)
	proj := Perspective(math.Pi/2, 1, 0.1, 100)
	vp := proj.Mul(view)

	p, ok := vp.TransformPoint(Zero3)
	if !ok {
		t.Fatal("origin should be in front of the camera")
	}
	if math.Abs(p.X) > 1e-9 || math.Abs(p.Y) > 1e-9 {
		t.Errorf("origin projected off-centre: %+v", p)
	}
	if _, ok := vp.TransformPoint(V3(0, 0, 20)); ok {
		t.Error("point behind the camera should not project")
	}
}

func TestNormalizeZero(t *testing.T) {
	if got := Zero3.Normalize(); got != Zero3 {
		t.Errorf("Normalize(0) = %+v", got)
	}
}
