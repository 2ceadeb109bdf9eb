package mathx

import (
	"testing"

	"creepair.dev/internal/sim/voxel"
)

func TestFloorDivAndMod(t *testing.T) {
	cases := []struct{ a, b, div, mod int }{
		{17, 16, 1, 1},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
	}
	for _, tc := range cases {
		if got := FloorDiv(tc.a, tc.b); got != tc.div {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", tc.a, tc.b, got, tc.div)
		}
		if got := Mod(tc.a, tc.b); got != tc.mod {
			t.Fatalf("Mod(%d,%d)=%d want %d", tc.a, tc.b, got, tc.mod)
		}
	}
}

func TestSphereOrderedBottomUp(t *testing.T) {
	pts := Sphere(voxel.Vec3i{Y: 10}, 1)
	if len(pts) != 7 {
		t.Fatalf("expected 7 points in unit sphere, got %d", len(pts))
	}
	if pts[0].Y != 9 || pts[len(pts)-1].Y != 11 {
		t.Fatalf("expected bottom-up order, got %v", pts)
	}
	if Sphere(voxel.Vec3i{}, -1) != nil {
		t.Fatalf("expected nil for negative radius")
	}
}

func TestHash2Deterministic(t *testing.T) {
	if Hash2(7, 3, -4) != Hash2(7, 3, -4) {
		t.Fatalf("hash not deterministic")
	}
	if Hash2(7, 3, -4) == Hash2(8, 3, -4) {
		t.Fatalf("expected seed to change hash")
	}
}
