package world

import (
	"fmt"
	"sort"

	"creepair.dev/internal/persistence/snapshot"
	"creepair.dev/internal/sim/voxel"
)

func vec(p voxel.Vec3i) [3]int   { return [3]int{p.X, p.Y, p.Z} }
func unvec(a [3]int) voxel.Vec3i { return voxel.Vec3i{X: a[0], Y: a[1], Z: a[2]} }

// ExportSnapshot captures loaded chunks and entities. Must run on the world
// goroutine.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:    snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: w.CurrentTick()},
		Seed:      w.cfg.Seed,
		Height:    w.cfg.Height,
		SurfaceY:  w.cfg.SurfaceY,
		BoundaryR: w.cfg.BoundaryR,
		Palette:   append([]string(nil), w.catalogs.Blocks.Palette...),
		Counters: snapshot.CountersV1{
			NextEntity:  w.nextEntity.Load(),
			NextCreeper: w.nextAgentNum.Load(),
		},
	}
	for _, k := range w.chunks.LoadedChunkKeys() {
		ch := w.chunks.Chunks[k]
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		snap.Chunks = append(snap.Chunks, snapshot.ChunkV1{CX: k.CX, CZ: k.CZ, Height: ch.Height, Blocks: blocks})
	}

	for p, st := range w.states {
		snap.States = append(snap.States, snapshot.StateV1{Pos: vec(p), State: st})
	}
	sort.Slice(snap.States, func(i, j int) bool {
		a, b := snap.States[i].Pos, snap.States[j].Pos
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		if a[2] != b[2] {
			return a[2] < b[2]
		}
		return a[0] < b[0]
	})
	for _, c := range w.Creepers() {
		snap.Creepers = append(snap.Creepers, snapshot.CreeperV1{ID: c.ID, Pos: vec(c.Pos), Fuse: c.Fuse, Ignited: c.Ignited})
	}
	for _, it := range w.items {
		snap.Items = append(snap.Items, snapshot.ItemEntityV1{ID: it.ID, Item: it.Item, Count: it.Count, Pos: vec(it.Loc.Pos), Tick: it.Tick})
	}
	for _, d := range w.decay {
		snap.Decay = append(snap.Decay, snapshot.DecayV1{Pos: vec(d.Pos), Due: d.Due})
	}
	return snap
}

// ImportSnapshot replaces the world state with snap. Block ids are remapped
// through the snapshot palette; a block missing from the catalog is an error
// and leaves the world untouched. Must run before Run or on the world goroutine.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot is for world %q, not %q", snap.Header.WorldID, w.cfg.ID)
	}
	if snap.Height != w.cfg.Height {
		return fmt.Errorf("snapshot height %d does not match world height %d", snap.Height, w.cfg.Height)
	}
	remap := make([]uint16, len(snap.Palette))
	for i, name := range snap.Palette {
		id, ok := w.catalogs.Blocks.ID(name)
		if !ok {
			return fmt.Errorf("snapshot block %s not in catalog", name)
		}
		remap[i] = id
	}
	chunks := make([]snapshot.ChunkV1, 0, len(snap.Chunks))
	for _, ch := range snap.Chunks {
		blocks := make([]uint16, len(ch.Blocks))
		for i, b := range ch.Blocks {
			if int(b) >= len(remap) {
				return fmt.Errorf("chunk %d,%d: palette id %d out of range", ch.CX, ch.CZ, b)
			}
			blocks[i] = remap[b]
		}
		ch.Blocks = blocks
		chunks = append(chunks, ch)
	}
	for _, ch := range chunks {
		if err := w.chunks.Put(ch.CX, ch.CZ, ch.Blocks); err != nil {
			return err
		}
	}

	w.states = map[voxel.Vec3i]string{}
	for _, st := range snap.States {
		w.states[unvec(st.Pos)] = st.State
	}
	w.creepers = map[string]*Creeper{}
	for _, c := range snap.Creepers {
		w.creepers[c.ID] = &Creeper{ID: c.ID, Pos: unvec(c.Pos), Fuse: c.Fuse, Ignited: c.Ignited}
	}
	w.items = w.items[:0]
	for _, it := range snap.Items {
		w.items = append(w.items, ItemEntity{ID: it.ID, Item: it.Item, Count: it.Count, Loc: w.Loc(unvec(it.Pos)), Tick: it.Tick})
	}
	w.decay = w.decay[:0]
	for _, d := range snap.Decay {
		w.decay = append(w.decay, decayEntry{Pos: unvec(d.Pos), Due: d.Due})
	}
	w.tick.Store(snap.Header.Tick)
	w.nextEntity.Store(snap.Counters.NextEntity)
	w.nextAgentNum.Store(snap.Counters.NextCreeper)
	w.log.Printf("imported snapshot tick=%d chunks=%d creepers=%d", snap.Header.Tick, len(chunks), len(snap.Creepers))
	return nil
}
