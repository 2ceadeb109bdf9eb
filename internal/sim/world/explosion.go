package world

import (
	"fmt"

	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/voxel"
	"creepair.dev/internal/sim/world/logic/mathx"
)

type Creeper struct {
	ID      string      `json:"id"`
	Pos     voxel.Vec3i `json:"pos"`
	Fuse    int         `json:"fuse"`
	Ignited bool        `json:"ignited"`
}

func (c *Creeper) Agent() event.Agent { return event.Agent{ID: c.ID, Kind: "CREEPER"} }

// Explode destroys every breakable block within radius of center on behalf of
// agent and returns how many were destroyed. Listeners see the explosion
// before any block is written and may cancel it; drops and neighbour updates
// of each destroyed block follow, carrying agent as their parent cause.
func (w *World) Explode(agent event.Agent, center voxel.Vec3i, radius int) int {
	var txns []event.Transaction
	for _, p := range mathx.Sphere(center, radius) {
		if !w.writable(p) {
			continue
		}
		b := w.chunks.GetBlock(p.X, p.Y, p.Z)
		if b == w.air || w.def(b).BlastProof {
			continue
		}
		orig := w.SnapshotAt(p)
		final := voxel.Snapshot{Loc: orig.Loc, Block: "AIR", Entity: w.newEntity()}
		txns = append(txns, event.Transaction{Original: orig, Final: final})
	}

	ev := &event.Explosion{Agent: agent, Center: w.Loc(center), Radius: radius, Txns: txns}
	if !w.events.Dispatch(ev) {
		w.log.Printf("explosion by %s at %s cancelled", agent, center)
		return 0
	}
	for _, tx := range ev.Txns {
		w.put(tx.Original.Loc.Pos, w.air, "")
	}
	for _, tx := range ev.Txns {
		// Side effects see a fresh capture of the destroyed block, not the
		// one handed to explosion listeners.
		resynth := tx.Original
		resynth.Entity = w.newEntity()
		w.drop(resynth, event.Cause{Agent: agent, Block: &resynth})
	}
	for _, tx := range ev.Txns {
		w.notifyNeighbors(tx.Final, event.Cause{Agent: agent, Parent: agent, Block: &tx.Original})
	}
	w.log.Printf("explosion by %s at %s r=%d destroyed=%d", agent, center, radius, len(ev.Txns))
	return len(ev.Txns)
}

// SpawnCreeper places an unlit creeper at p.
func (w *World) SpawnCreeper(p voxel.Vec3i) *Creeper {
	n := w.nextAgentNum.Add(1)
	c := &Creeper{ID: fmt.Sprintf("C%d", n), Pos: p, Fuse: w.cfg.CreeperFuseTicks}
	w.creepers[c.ID] = c
	return c
}

func (w *World) Ignite(id string) bool {
	c := w.creepers[id]
	if c == nil {
		return false
	}
	c.Ignited = true
	return true
}

func (w *World) Creepers() []Creeper {
	out := make([]Creeper, 0, len(w.creepers))
	for _, id := range w.creeperIDs() {
		out = append(out, *w.creepers[id])
	}
	return out
}

// SpawnTestCreeper marks the spawn location with a bookshelf, then spawns and
// ignites a creeper there.
func (w *World) SpawnTestCreeper() *Creeper {
	spawn := w.Spawn()
	w.SetBlock(spawn, "BOOKSHELF", "")
	c := w.SpawnCreeper(spawn)
	w.Ignite(c.ID)
	w.log.Printf("test creeper %s ignited at %s", c.ID, spawn)
	return c
}

func (w *World) stepCreepers() {
	for _, id := range w.creeperIDs() {
		c := w.creepers[id]
		if !c.Ignited {
			continue
		}
		c.Fuse--
		if c.Fuse > 0 {
			continue
		}
		delete(w.creepers, id)
		w.Explode(c.Agent(), c.Pos, w.cfg.CreeperRadius)
	}
}
