package voxel

import "fmt"

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

// Neighbors are the six face-connected offsets, down first.
var Neighbors = [6]Vec3i{
	{X: 0, Y: -1, Z: 0},
	{X: 0, Y: 1, Z: 0},
	{X: 1, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: -1},
	{X: -1, Y: 0, Z: 0},
	{X: 0, Y: 0, Z: 1},
}

// Location is a position inside a named world.
type Location struct {
	World string `json:"world"`
	Pos   Vec3i  `json:"pos"`
}

func (l Location) Offset(d Vec3i) Location { return Location{World: l.World, Pos: l.Pos.Add(d)} }

func (l Location) String() string { return l.World + l.Pos.String() }

// Snapshot is an immutable capture of one voxel.
//
// Entity identifies the capture itself: two snapshots of the same block taken at
// different moments carry different Entity values.
type Snapshot struct {
	Loc    Location `json:"loc"`
	Block  string   `json:"block"`
	State  string   `json:"state,omitempty"`
	Entity uint64   `json:"entity"`
}

// Same reports whether o describes the same block at the same place, ignoring
// capture identity. Side-effect events often carry a re-synthesised snapshot of
// a destroyed block, so this is the equality used for membership tests.
func (s Snapshot) Same(o Snapshot) bool {
	return s.Loc == o.Loc && s.Block == o.Block && s.State == o.State
}

func (s Snapshot) String() string {
	if s.State == "" {
		return fmt.Sprintf("%s@%s#%d", s.Block, s.Loc, s.Entity)
	}
	return fmt.Sprintf("%s[%s]@%s#%d", s.Block, s.State, s.Loc, s.Entity)
}

type RestoreFlags struct {
	// Force overwrites whatever currently occupies the location.
	Force bool
	// Notify lets the write fire neighbour notifications and other side effects.
	Notify bool
}

// Restorer writes a captured snapshot back into the live world. It reports
// false when the location can no longer be written (unloaded, out of bounds, or
// occupied without Force); it never panics.
type Restorer interface {
	Restore(s Snapshot, flags RestoreFlags) bool
}

type RestorerFunc func(s Snapshot, flags RestoreFlags) bool

func (f RestorerFunc) Restore(s Snapshot, flags RestoreFlags) bool { return f(s, flags) }
