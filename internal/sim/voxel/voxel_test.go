package voxel

import "testing"

func TestSnapshotSameIgnoresEntity(t *testing.T) {
	loc := Location{World: "overworld", Pos: Vec3i{X: 1, Y: 2, Z: 3}}
	a := Snapshot{Loc: loc, Block: "DIRT", Entity: 1}
	b := Snapshot{Loc: loc, Block: "DIRT", Entity: 9}
	if !a.Same(b) {
		t.Fatalf("expected relaxed match for re-synthesised snapshot")
	}
	if a == b {
		t.Fatalf("expected strict identity to differ")
	}
}

func TestSnapshotSameComparesState(t *testing.T) {
	loc := Location{World: "overworld", Pos: Vec3i{Y: 5}}
	cases := []struct {
		name string
		a, b Snapshot
		want bool
	}{
		{"state differs", Snapshot{Loc: loc, Block: "VINE", State: "facing=north"}, Snapshot{Loc: loc, Block: "VINE", State: "facing=south"}, false},
		{"block differs", Snapshot{Loc: loc, Block: "SAND"}, Snapshot{Loc: loc, Block: "GRAVEL"}, false},
		{"world differs", Snapshot{Loc: loc, Block: "SAND"}, Snapshot{Loc: Location{World: "nether", Pos: loc.Pos}, Block: "SAND"}, false},
		{"equal", Snapshot{Loc: loc, Block: "VINE", State: "facing=north"}, Snapshot{Loc: loc, Block: "VINE", State: "facing=north"}, true},
	}
	for _, tc := range cases {
		if got := tc.a.Same(tc.b); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestLocationOffset(t *testing.T) {
	l := Location{World: "w", Pos: Vec3i{X: 1, Y: 1, Z: 1}}
	if got := l.Offset(Neighbors[0]); got.Pos != (Vec3i{X: 1, Y: 0, Z: 1}) || got.World != "w" {
		t.Fatalf("unexpected offset: %v", got)
	}
}
