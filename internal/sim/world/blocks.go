package world

import (
	"creepair.dev/internal/sim/catalogs"
	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/voxel"
)

func (w *World) newEntity() uint64 { return w.nextEntity.Add(1) }

func (w *World) def(b uint16) catalogs.BlockDef { return w.catalogs.Blocks.Def(b) }

func (w *World) writable(p voxel.Vec3i) bool {
	return w.chunks.InBounds(p.X, p.Y, p.Z) && w.chunks.IsLoaded(p.X, p.Z)
}

// SnapshotAt captures the block at p. Every call yields a new capture identity.
func (w *World) SnapshotAt(p voxel.Vec3i) voxel.Snapshot {
	b := w.chunks.GetBlock(p.X, p.Y, p.Z)
	return voxel.Snapshot{
		Loc:    w.Loc(p),
		Block:  w.catalogs.Blocks.Name(b),
		State:  w.states[p],
		Entity: w.newEntity(),
	}
}

// BlockAt returns the block name at p; unloaded and out-of-bounds read as AIR.
func (w *World) BlockAt(p voxel.Vec3i) string {
	return w.catalogs.Blocks.Name(w.chunks.GetBlock(p.X, p.Y, p.Z))
}

func (w *World) StateAt(p voxel.Vec3i) string { return w.states[p] }

// SetBlock places block with extended state at p without firing any event.
func (w *World) SetBlock(p voxel.Vec3i, block, state string) bool {
	id, ok := w.catalogs.Blocks.ID(block)
	if !ok || !w.writable(p) {
		return false
	}
	return w.put(p, id, state)
}

func (w *World) put(p voxel.Vec3i, id uint16, state string) bool {
	if !w.chunks.SetBlock(p.X, p.Y, p.Z, id) {
		return false
	}
	if state == "" || id == w.air {
		delete(w.states, p)
	} else {
		w.states[p] = state
	}
	return true
}

// Restore writes a captured snapshot back. It fails without side effects when
// the snapshot belongs to another world, names an unknown block, points at an
// unloaded or out-of-bounds location, or (without Force) the location is
// occupied by something else.
func (w *World) Restore(s voxel.Snapshot, flags voxel.RestoreFlags) bool {
	if s.Loc.World != w.cfg.ID {
		return false
	}
	id, ok := w.catalogs.Blocks.ID(s.Block)
	if !ok {
		return false
	}
	p := s.Loc.Pos
	if !w.writable(p) {
		return false
	}
	if !flags.Force {
		cur := w.chunks.GetBlock(p.X, p.Y, p.Z)
		if cur != w.air && cur != id {
			return false
		}
	}
	if !w.put(p, id, s.State) {
		return false
	}
	if flags.Notify {
		w.notifyNeighbors(w.SnapshotAt(p), event.Cause{})
	}
	return true
}
