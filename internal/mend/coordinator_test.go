package mend

import (
	"testing"

	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/scheduler"
	"creepair.dev/internal/sim/voxel"
)

func txns(snaps ...voxel.Snapshot) []event.Transaction {
	out := make([]event.Transaction, 0, len(snaps))
	for _, s := range snaps {
		air := s
		air.Block = "AIR"
		out = append(out, event.Transaction{Original: s, Final: air})
	}
	return out
}

type recordingJournal struct {
	opened   []RecordInfo
	restored int
	closed   []string
}

func (j *recordingJournal) RecordOpened(info RecordInfo) { j.opened = append(j.opened, info) }
func (j *recordingJournal) BlockRestored(string, voxel.Snapshot, bool) {
	j.restored++
}
func (j *recordingJournal) RecordClosed(id string, restored, failed int) {
	j.closed = append(j.closed, id)
}

func TestOnExplosionCapturesAllAndQueuesProtected(t *testing.T) {
	fr := &fakeRestorer{}
	c := NewCoordinator(Config{Restorer: fr, MaxPerTick: 2})
	d10, d8, d9 := snap("DIRT", 0, 10, 0), snap("DIRT", 1, 8, 0), snap("DIRT", 2, 9, 0)
	planks := snap("PLANKS", 3, 9, 0)

	r := c.OnExplosion(creeper, txns(d10, d8, planks, d9))
	if r.CapturedLen() != 4 {
		t.Fatalf("expected 4 captured, got %d", r.CapturedLen())
	}
	if r.PendingLen() != 3 {
		t.Fatalf("expected 3 pending, got %d", r.PendingLen())
	}
	for _, s := range r.Pending() {
		if s.Block != "DIRT" || !r.ContainsCaptured(s) {
			t.Fatalf("unexpected pending entry %v", s)
		}
	}

	c.Tick()
	if got := fr.ys(); len(got) != 2 || got[0] != 8 || got[1] != 9 {
		t.Fatalf("expected y=8,9 on first tick, got %v", got)
	}
	if c.Live() != 1 {
		t.Fatalf("expected record still live")
	}
	c.Tick()
	if got := fr.ys(); len(got) != 3 || got[2] != 10 {
		t.Fatalf("expected y=10 on second tick, got %v", got)
	}
	if c.Live() != 0 {
		t.Fatalf("expected record pruned once exhausted, live=%d", c.Live())
	}
	for _, s := range fr.restored {
		if s.Block == "PLANKS" {
			t.Fatalf("non-protected block restored")
		}
	}
}

func TestRecordWithNothingPendingPrunedNextTick(t *testing.T) {
	c := NewCoordinator(Config{Restorer: &fakeRestorer{}, MaxPerTick: 5})
	planks := snap("PLANKS", 0, 0, 0)
	c.OnExplosion(creeper, txns(planks))
	if c.Live() != 1 {
		t.Fatalf("expected empty record to be tracked until next tick")
	}
	if !c.ShouldSuppressDrop(planks) {
		t.Fatalf("expected footprint to suppress drops before pruning")
	}
	c.Tick()
	if c.Live() != 0 {
		t.Fatalf("expected empty record pruned")
	}
	if c.ShouldSuppressDrop(planks) {
		t.Fatalf("expected no suppression after pruning")
	}
}

func TestTickVisitsEveryRecordOnce(t *testing.T) {
	fr := &fakeRestorer{}
	c := NewCoordinator(Config{Restorer: fr, MaxPerTick: 1})
	// a and c exhaust on the first tick, b needs two.
	c.OnExplosion(event.Agent{ID: "a", Kind: "CREEPER"}, txns(snap("DIRT", 0, 0, 0)))
	c.OnExplosion(event.Agent{ID: "b", Kind: "CREEPER"}, txns(snap("DIRT", 1, 0, 0), snap("DIRT", 1, 1, 0)))
	c.OnExplosion(event.Agent{ID: "c", Kind: "CREEPER"}, txns(snap("DIRT", 2, 0, 0)))

	c.Tick()
	if len(fr.restored) != 3 {
		t.Fatalf("expected one restore per record, got %d", len(fr.restored))
	}
	if c.Live() != 1 {
		t.Fatalf("expected only b to remain, live=%d", c.Live())
	}
	c.Tick()
	if len(fr.restored) != 4 || c.Live() != 0 {
		t.Fatalf("expected b finished, restored=%d live=%d", len(fr.restored), c.Live())
	}
}

func TestSuppressionCorrelation(t *testing.T) {
	c := NewCoordinator(Config{Restorer: &fakeRestorer{}, MaxPerTick: 10})
	stone := snap("STONE", 4, 4, 4)
	planks := snap("PLANKS", 5, 4, 4)
	c.OnExplosion(creeper, txns(stone, planks))

	outside := snap("STONE", 40, 4, 4)
	other := event.Agent{ID: "C2", Kind: "CREEPER"}
	cases := []struct {
		name   string
		block  voxel.Snapshot
		parent event.Agent
		want   bool
	}{
		{"captured protected location", stone, event.Agent{}, true},
		{"captured unprotected location", planks, other, true},
		{"same parent anywhere", outside, creeper, true},
		{"unrelated", outside, other, false},
		{"no parent unrelated", outside, event.Agent{}, false},
	}
	for _, tc := range cases {
		if got := c.ShouldSuppressNotification(tc.block, tc.parent); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
	if !c.ShouldSuppressDecay(planks) || c.ShouldSuppressDecay(outside) {
		t.Fatalf("unexpected decay suppression")
	}

	c.Tick()
	if c.Live() != 0 {
		t.Fatalf("expected record exhausted")
	}
	if c.ShouldSuppressNotification(stone, other) || c.ShouldSuppressNotification(outside, creeper) {
		t.Fatalf("expected no suppression once record is pruned")
	}
	st := c.Stats()
	if st.SuppressedNotify != 3 || st.SuppressedDecay != 1 {
		t.Fatalf("unexpected suppression counters: %+v", st)
	}
}

func TestOverlappingExplosionsBothMatch(t *testing.T) {
	c := NewCoordinator(Config{Restorer: &fakeRestorer{}, MaxPerTick: 1})
	shared := snap("DIRT", 0, 0, 0)
	onlyB := snap("DIRT", 1, 0, 0)
	a := c.OnExplosion(event.Agent{ID: "A", Kind: "CREEPER"}, txns(shared))
	b := c.OnExplosion(event.Agent{ID: "B", Kind: "CREEPER"}, txns(shared, onlyB))

	ids := c.RecordsFor(shared.Loc)
	if len(ids) != 2 || ids[0] != a.ID() || ids[1] != b.ID() {
		t.Fatalf("expected both records for shared location, got %v", ids)
	}
	if got := c.RecordsFor(onlyB.Loc); len(got) != 1 || got[0] != b.ID() {
		t.Fatalf("expected only B for its own block, got %v", got)
	}

	c.Tick()
	// A is exhausted; B still owns the shared location.
	if !c.ShouldSuppressDecay(shared) {
		t.Fatalf("expected B to keep suppressing shared location")
	}
	if got := c.RecordsFor(shared.Loc); len(got) != 1 || got[0] != b.ID() {
		t.Fatalf("expected only B after A pruned, got %v", got)
	}
}

func TestZeroBatchDoesNothing(t *testing.T) {
	fr := &fakeRestorer{}
	c := NewCoordinator(Config{Restorer: fr})
	c.SetMaxPerTick(0)
	c.OnExplosion(creeper, txns(snap("DIRT", 0, 0, 0)))
	for i := 0; i < 5; i++ {
		c.Tick()
	}
	if len(fr.restored) != 0 || c.Live() != 1 {
		t.Fatalf("expected no progress with zero batch, restored=%d live=%d", len(fr.restored), c.Live())
	}
}

func TestConfigDefaults(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantPeriod int
		wantMax    int
	}{
		{"zero", Config{}, DefaultPeriodTicks, DefaultMaxPerTick},
		{"negative", Config{PeriodTicks: -1, MaxPerTick: -3}, DefaultPeriodTicks, DefaultMaxPerTick},
		{"explicit", Config{PeriodTicks: 4, MaxPerTick: 2}, 4, 2},
	}
	for _, tt := range tests {
		st := NewCoordinator(tt.cfg).Stats()
		if st.PeriodTicks != tt.wantPeriod || st.MaxPerTick != tt.wantMax {
			t.Fatalf("%s: got period=%d max=%d", tt.name, st.PeriodTicks, st.MaxPerTick)
		}
	}
}

func TestReconfigureReplacesTask(t *testing.T) {
	s := scheduler.New()
	fr := &fakeRestorer{}
	c := NewCoordinator(Config{Restorer: fr, PeriodTicks: 10, MaxPerTick: 1})
	c.Start(s)
	if s.Pending() != 1 {
		t.Fatalf("expected one task, got %d", s.Pending())
	}

	c.Reconfigure(2, 3)
	c.Reconfigure(2, 3)
	if s.Pending() != 1 {
		t.Fatalf("expected a single task after reconfigure, got %d", s.Pending())
	}
	c.OnExplosion(creeper, txns(snap("DIRT", 0, 0, 0), snap("DIRT", 0, 1, 0), snap("DIRT", 0, 2, 0), snap("DIRT", 0, 3, 0)))
	s.Advance()
	if len(fr.restored) != 0 {
		t.Fatalf("expected nothing before the period elapses")
	}
	s.Advance()
	if len(fr.restored) != 3 {
		t.Fatalf("expected batch of 3 after 2 ticks, got %d", len(fr.restored))
	}

	st := c.Stats()
	if st.PeriodTicks != 2 || st.MaxPerTick != 3 || st.PendingBlocks != 1 || st.LiveRecords != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	c.Stop()
	s.Advance()
	s.Advance()
	if len(fr.restored) != 3 || s.Pending() != 0 {
		t.Fatalf("expected no work after stop, restored=%d tasks=%d", len(fr.restored), s.Pending())
	}
}

func TestJournalSeesLifecycle(t *testing.T) {
	j := &recordingJournal{}
	fr := &fakeRestorer{}
	c := NewCoordinator(Config{Restorer: fr, MaxPerTick: 10, Journal: Journals{j}})
	r := c.OnExplosion(creeper, txns(snap("SAND", 0, 0, 0), snap("SAND", 0, 1, 0)))
	c.Tick()
	if len(j.opened) != 1 || j.opened[0].ID != r.ID() || len(j.opened[0].Pending) != 2 {
		t.Fatalf("unexpected opened: %+v", j.opened)
	}
	if j.restored != 2 {
		t.Fatalf("expected 2 restore notifications, got %d", j.restored)
	}
	if len(j.closed) != 1 || j.closed[0] != r.ID() {
		t.Fatalf("unexpected closed: %v", j.closed)
	}
}

func TestSetProtectedTypes(t *testing.T) {
	c := NewCoordinator(Config{Restorer: &fakeRestorer{}, ProtectedTypes: []string{"SAND"}})
	if got := c.ProtectedTypes(); len(got) != 1 || got[0] != "SAND" {
		t.Fatalf("unexpected protected set %v", c.ProtectedTypes())
	}
	c.SetProtectedTypes([]string{"ICE", "DIRT"})
	got := c.ProtectedTypes()
	if len(got) != 2 || got[0] != "DIRT" || got[1] != "ICE" {
		t.Fatalf("unexpected protected types %v", got)
	}
	if len(NewCoordinator(Config{}).ProtectedTypes()) != len(DefaultProtectedTypes) {
		t.Fatalf("expected default protected types")
	}
}

func TestDrainRestoresEverythingAndCloses(t *testing.T) {
	j := &recordingJournal{}
	fr := &fakeRestorer{}
	c := NewCoordinator(Config{Restorer: fr, Journal: j})
	c.SetMaxPerTick(0)
	c.OnExplosion(creeper, txns(snap("DIRT", 0, 2, 0), snap("DIRT", 0, 1, 0)))
	c.OnExplosion(event.Agent{ID: "other", Kind: "CREEPER"}, txns(snap("PLANKS", 5, 0, 0)))

	if n := c.Drain(); n != 2 {
		t.Fatalf("expected 2 blocks drained, got %d", n)
	}
	if got := fr.ys(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected bottom-up drain, got %v", got)
	}
	if c.Live() != 0 || len(j.closed) != 2 {
		t.Fatalf("expected all records closed, live=%d closed=%v", c.Live(), j.closed)
	}
	if c.Drain() != 0 {
		t.Fatalf("expected nothing left to drain")
	}
}
