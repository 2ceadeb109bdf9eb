package world

import (
	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/voxel"
)

// maxNotifyChain bounds how many neighbour updates one change may cascade into.
const maxNotifyChain = 4096

// leafSupportR is how far (Chebyshev distance) a log keeps leaves alive.
const leafSupportR = 4

type decayEntry struct {
	Pos voxel.Vec3i
	Due uint64
}

type ItemEntity struct {
	ID    uint64         `json:"id"`
	Item  string         `json:"item"`
	Count int            `json:"count"`
	Loc   voxel.Location `json:"loc"`
	Tick  uint64         `json:"tick"`
}

type notifyReq struct {
	block voxel.Snapshot
	cause event.Cause
}

// notifyNeighbors tells the six neighbours of block that it changed. Gravity
// blocks left without support fall and unsupported leaves are queued for
// decay; both cascade further notifications with the same cause.
func (w *World) notifyNeighbors(block voxel.Snapshot, cause event.Cause) {
	queue := []notifyReq{{block: block, cause: cause}}
	for n := 0; len(queue) > 0 && n < maxNotifyChain; n++ {
		req := queue[0]
		queue = queue[1:]

		ev := &event.NotifyNeighbor{Block: req.block, Cause: req.cause}
		for _, d := range voxel.Neighbors {
			ev.Neighbors = append(ev.Neighbors, req.block.Loc.Offset(d))
		}
		if !w.events.Dispatch(ev) {
			continue
		}
		for _, nl := range ev.Neighbors {
			if moved, ok := w.react(nl.Pos); ok {
				queue = append(queue, notifyReq{block: moved, cause: req.cause})
			}
		}
	}
}

// react applies the host physics to p. When a block moved it returns the
// snapshot of the vacated position.
func (w *World) react(p voxel.Vec3i) (voxel.Snapshot, bool) {
	if !w.writable(p) {
		return voxel.Snapshot{}, false
	}
	b := w.chunks.GetBlock(p.X, p.Y, p.Z)
	if b == w.air {
		return voxel.Snapshot{}, false
	}
	d := w.def(b)
	switch {
	case d.Gravity:
		dest := p
		for dest.Y > 0 {
			below := voxel.Vec3i{X: dest.X, Y: dest.Y - 1, Z: dest.Z}
			if !w.writable(below) || w.def(w.chunks.GetBlock(below.X, below.Y, below.Z)).Solid {
				break
			}
			dest = below
		}
		if dest == p {
			return voxel.Snapshot{}, false
		}
		vacated := w.SnapshotAt(p)
		state := w.states[p]
		w.put(p, w.air, "")
		w.put(dest, b, state)
		return vacated, true
	case d.Decays:
		if !w.leafSupported(p) {
			w.queueDecay(p)
		}
	}
	return voxel.Snapshot{}, false
}

func (w *World) leafSupported(p voxel.Vec3i) bool {
	logID, ok := w.catalogs.Blocks.ID("LOG")
	if !ok {
		return false
	}
	for dy := -leafSupportR; dy <= leafSupportR; dy++ {
		for dz := -leafSupportR; dz <= leafSupportR; dz++ {
			for dx := -leafSupportR; dx <= leafSupportR; dx++ {
				if w.chunks.GetBlock(p.X+dx, p.Y+dy, p.Z+dz) == logID {
					return true
				}
			}
		}
	}
	return false
}

func (w *World) queueDecay(p voxel.Vec3i) {
	for _, e := range w.decay {
		if e.Pos == p {
			return
		}
	}
	w.decay = append(w.decay, decayEntry{Pos: p, Due: w.CurrentTick() + uint64(w.cfg.DecayDelayTicks)})
}

// stepDecay removes due, still unsupported, decaying blocks unless a listener
// cancels the decay.
func (w *World) stepDecay(now uint64) {
	if len(w.decay) == 0 {
		return
	}
	var due []decayEntry
	keep := w.decay[:0]
	for _, e := range w.decay {
		if e.Due <= now {
			due = append(due, e)
		} else {
			keep = append(keep, e)
		}
	}
	w.decay = keep
	for _, e := range due {
		b := w.chunks.GetBlock(e.Pos.X, e.Pos.Y, e.Pos.Z)
		if !w.def(b).Decays || w.leafSupported(e.Pos) {
			continue
		}
		snap := w.SnapshotAt(e.Pos)
		if !w.events.Dispatch(&event.Decay{Block: snap}) {
			continue
		}
		w.put(e.Pos, w.air, "")
		cause := event.Cause{Block: &snap}
		w.drop(snap, cause)
		w.notifyNeighbors(snap, event.Cause{})
	}
}

// drop spawns the items a destroyed block yields unless a listener cancels it.
func (w *World) drop(block voxel.Snapshot, cause event.Cause) {
	id, ok := w.catalogs.Blocks.ID(block.Block)
	if !ok {
		return
	}
	item := w.def(id).DropsItem
	if item == "" {
		return
	}
	ev := &event.DropItem{
		Cause: cause,
		Items: []event.ItemDrop{{Item: item, Count: 1, Loc: block.Loc}},
	}
	if !w.events.Dispatch(ev) {
		return
	}
	for _, it := range ev.Items {
		w.items = append(w.items, ItemEntity{
			ID:    w.newEntity(),
			Item:  it.Item,
			Count: it.Count,
			Loc:   it.Loc,
			Tick:  w.CurrentTick(),
		})
	}
}

// Items returns a copy of the dropped item entities.
func (w *World) Items() []ItemEntity {
	out := make([]ItemEntity, len(w.items))
	copy(out, w.items)
	return out
}
