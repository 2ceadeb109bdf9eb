package mend

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"creepair.dev/internal/sim/event"
)

func TestListenerCancelsSideEffects(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	r := event.NewRouter()
	c := NewCoordinator(Config{Restorer: &fakeRestorer{}, MaxPerTick: 5, Logger: logger})
	Attach(r, c, logger, "CREEPER")

	dirt := snap("DIRT", 0, 3, 0)
	leaves := snap("LEAVES", 0, 4, 0)
	if !r.Dispatch(&event.Explosion{Agent: creeper, Txns: txns(dirt, leaves)}) {
		t.Fatalf("listener must not cancel explosions")
	}
	if c.Live() != 1 {
		t.Fatalf("expected record opened")
	}

	notify := &event.NotifyNeighbor{Block: dirt, Cause: event.Cause{Parent: creeper}}
	if r.Dispatch(notify) {
		t.Fatalf("expected notify cancelled")
	}
	if r.Dispatch(&event.Decay{Block: leaves}) {
		t.Fatalf("expected decay cancelled")
	}

	resynth := dirt
	resynth.Entity = 424242
	drop := &event.DropItem{
		Cause: event.Cause{Block: &resynth},
		Items: []event.ItemDrop{{Item: "SAPLING", Count: 1, Loc: dirt.Loc}},
	}
	if r.Dispatch(drop) {
		t.Fatalf("expected drop cancelled")
	}
	if !strings.Contains(buf.String(), "sapling drop") {
		t.Fatalf("expected sapling drop logged, got %q", buf.String())
	}

	noCause := &event.DropItem{Items: []event.ItemDrop{{Item: "DIRT", Count: 1}}}
	if !r.Dispatch(noCause) {
		t.Fatalf("drops without a block cause must pass")
	}
}

func TestListenerIgnoresOtherSources(t *testing.T) {
	r := event.NewRouter()
	c := NewCoordinator(Config{Restorer: &fakeRestorer{}})
	Attach(r, c, nil, "CREEPER")

	r.Dispatch(&event.Explosion{Agent: event.Agent{ID: "T1", Kind: "TNT"}, Txns: txns(snap("DIRT", 0, 0, 0))})
	if c.Live() != 0 {
		t.Fatalf("expected non-creeper explosion ignored")
	}

	cancelled := &event.Explosion{Agent: creeper, Txns: txns(snap("DIRT", 0, 0, 0))}
	cancelled.SetCancelled(true)
	r.Dispatch(cancelled)
	if c.Live() != 0 {
		t.Fatalf("expected cancelled explosion ignored")
	}

	all := event.NewRouter()
	Attach(all, c, nil)
	all.Dispatch(&event.Explosion{Agent: event.Agent{ID: "T1", Kind: "TNT"}, Txns: txns(snap("DIRT", 0, 0, 0))})
	if c.Live() != 1 {
		t.Fatalf("expected any source accepted without filter")
	}
	unrelated := &event.NotifyNeighbor{Block: snap("DIRT", 9, 9, 9)}
	if !all.Dispatch(unrelated) {
		t.Fatalf("unrelated notify must pass")
	}
}
