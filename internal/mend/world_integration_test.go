package mend_test

import (
	"testing"

	"creepair.dev/internal/mend"
	"creepair.dev/internal/sim/catalogs"
	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/voxel"
	"creepair.dev/internal/sim/world"
	"creepair.dev/internal/sim/world/terrain/store"
)

func newMendedWorld(t *testing.T, period, max int) (*world.World, *mend.Coordinator) {
	t.Helper()
	cats, err := catalogs.Defaults()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{
		Seed:             7,
		Height:           32,
		SurfaceY:         10,
		CreeperRadius:    2,
		CreeperFuseTicks: 2,
	}, cats, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	c := mend.NewCoordinator(mend.Config{PeriodTicks: period, MaxPerTick: max, Restorer: w})
	mend.Attach(w.Events(), c, nil, "CREEPER")
	c.Start(w.Scheduler())
	return w, c
}

func TestCreeperCraterIsMended(t *testing.T) {
	w, c := newMendedWorld(t, 1, 5)
	keys := store.KeysAround(0, 0, 4)
	before := w.Chunks().Digest(keys)

	planks := voxel.Vec3i{X: 0, Y: 12, Z: 0}
	if !w.SetBlock(planks, "PLANKS", "") {
		t.Fatalf("set planks")
	}
	center := voxel.Vec3i{X: 0, Y: 10, Z: 0}
	n := w.Explode(event.Agent{ID: "C9", Kind: "CREEPER"}, center, 2)
	if n == 0 || c.Live() != 1 {
		t.Fatalf("expected one live record, destroyed=%d live=%d", n, c.Live())
	}
	if got := w.BlockAt(center); got != "AIR" {
		t.Fatalf("expected crater, got %s", got)
	}
	if len(w.Items()) != 0 {
		t.Fatalf("expected drops suppressed, got %v", w.Items())
	}

	for i := 0; i < 20 && c.Live() > 0; i++ {
		w.StepOnce()
	}
	if c.Live() != 0 {
		t.Fatalf("expected record exhausted, stats %+v", c.Stats())
	}
	if got := w.BlockAt(planks); got != "AIR" {
		t.Fatalf("expected planks to stay destroyed, got %s", got)
	}
	if after := w.Chunks().Digest(keys); after != before {
		t.Fatalf("terrain not restored")
	}
	st := c.Stats()
	if st.BlocksFailed != 0 || st.BlocksRestored != uint64(n-1) {
		t.Fatalf("expected %d restored, got %+v", n-1, st)
	}
	if st.SuppressedNotify == 0 {
		t.Fatalf("expected neighbour updates suppressed")
	}
}

func TestRestoreOrderIsBottomUpInWorld(t *testing.T) {
	w, _ := newMendedWorld(t, 1, 1)
	var order []int
	restorer := voxel.RestorerFunc(func(s voxel.Snapshot, f voxel.RestoreFlags) bool {
		order = append(order, s.Loc.Pos.Y)
		return w.Restore(s, f)
	})
	c := mend.NewCoordinator(mend.Config{PeriodTicks: 1, MaxPerTick: 1, Restorer: restorer})
	mend.Attach(w.Events(), c, nil)
	c.Start(w.Scheduler())

	w.Explode(event.Agent{ID: "T1", Kind: "TNT"}, voxel.Vec3i{X: 0, Y: 9, Z: 0}, 1)
	for i := 0; i < 10; i++ {
		w.StepOnce()
	}
	if len(order) == 0 {
		t.Fatalf("expected restorations")
	}
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("expected ascending y, got %v", order)
		}
	}
}

func TestOtherSourcesAreNotMended(t *testing.T) {
	w, c := newMendedWorld(t, 1, 5)
	center := voxel.Vec3i{X: 0, Y: 10, Z: 0}
	w.Explode(event.Agent{ID: "T1", Kind: "TNT"}, center, 1)
	if c.Live() != 0 {
		t.Fatalf("expected TNT explosion ignored")
	}
	if len(w.Items()) == 0 {
		t.Fatalf("expected drops from unmended explosion")
	}
	for i := 0; i < 5; i++ {
		w.StepOnce()
	}
	if got := w.BlockAt(center); got != "AIR" {
		t.Fatalf("expected crater to remain, got %s", got)
	}
}

func TestTestCreeperLeavesBookshelfDestroyed(t *testing.T) {
	w, c := newMendedWorld(t, 1, 50)
	w.SpawnTestCreeper()
	w.StepOnce()
	w.StepOnce()
	if c.Stats().RecordsOpened != 1 {
		t.Fatalf("expected the creeper to open a record, got %+v", c.Stats())
	}
	for i := 0; i < 5 && c.Live() > 0; i++ {
		w.StepOnce()
	}
	if got := w.BlockAt(w.Spawn()); got != "AIR" {
		t.Fatalf("expected bookshelf gone, got %s", got)
	}
	if got := w.BlockAt(voxel.Vec3i{X: 0, Y: 10, Z: 0}); got != "GRASS" {
		t.Fatalf("expected grass restored under spawn, got %s", got)
	}
	for _, it := range w.Items() {
		if it.Item == "BOOK" {
			t.Fatalf("expected bookshelf drop suppressed")
		}
	}
}

func TestUnloadedChunkRestoreIsConsumed(t *testing.T) {
	w, c := newMendedWorld(t, 1, 100)
	w.Explode(event.Agent{ID: "C1", Kind: "CREEPER"}, voxel.Vec3i{X: 3, Y: 10, Z: 3}, 1)
	w.Chunks().Unload(store.KeyFor(3, 3))
	w.StepOnce()
	if c.Live() != 0 {
		t.Fatalf("expected record pruned after failed restores")
	}
	if st := c.Stats(); st.BlocksFailed == 0 || st.BlocksRestored != 0 {
		t.Fatalf("expected only failures, got %+v", st)
	}
}
