package types

import (
	"math"
	"testing"
)

func TestVectorOps(t *testing.T) {
	a := XYZ(1, 2, 3)
	b := XYZ(4, 5, 6)

	if got := a.Add(b); got != XYZ(5, 7, 9) {
		t.Fatalf("expected add to return (5, 7, 9); got %v", got)
	}
	if got := b.Sub(a); got != Splat(3) {
		t.Fatalf("expected sub to return (3, 3, 3); got %v", got)
	}
	if got := a.Dot(b); got != 32 {
		t.Fatalf("expected dot product 32; got %f", got)
	}
	if got := XYZ(1, 0, 0).Cross(XYZ(0, 1, 0)); got != XYZ(0, 0, 1) {
		t.Fatalf("expected X x Y = Z; got %v", got)
	}
	if got := XYZ(4, 10, 18).DivVec(b); got != a {
		t.Fatalf("expected component-wise division to return (1, 2, 3); got %v", got)
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("expected zero vector to stay zero after normalization; got %v", got)
	}
	if l := XYZ(3, 4, 0).Normalize().Len(); math.Abs(float64(l)-1) > 1e-6 {
		t.Fatalf("expected unit length; got %f", l)
	}
}

func TestNaNDetection(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(-1))
	specs := []struct {
		v   Vec3
		exp bool
	}{
		{XYZ(0, 0, 0), false},
		{XYZ(nan, 0, 0), true},
		{XYZ(0, inf, 0), true},
	}
	for index, s := range specs {
		if got := s.v.IsNaNOrInf(); got != s.exp {
			t.Fatalf("[spec %d] expected %t; got %t", index, s.exp, got)
		}
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(XYZ(0, 1, 0), math.Pi/2)
	got := q.Rotate(XYZ(1, 0, 0))
	if !got.ApproxEqual(XYZ(0, 0, -1), 1e-5) {
		t.Fatalf("expected rotating +X by 90deg around +Y to give -Z; got %v", got)
	}

	// Two quarter turns compose into a half turn
	got = q.Mul(q).Normalize().Rotate(XYZ(1, 0, 0))
	if !got.ApproxEqual(XYZ(-1, 0, 0), 1e-5) {
		t.Fatalf("expected half turn to give -X; got %v", got)
	}
}
