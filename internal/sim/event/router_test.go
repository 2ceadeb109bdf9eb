package event

import (
	"testing"

	"creepair.dev/internal/sim/voxel"
)

func TestRouterDispatchOrderAndCancel(t *testing.T) {
	r := NewRouter()
	var order []int
	r.Subscribe(KindDecay, func(ev Event) { order = append(order, 1) })
	r.Subscribe(KindDecay, func(ev Event) {
		order = append(order, 2)
		ev.SetCancelled(true)
	})
	r.Subscribe(KindDecay, func(ev Event) { order = append(order, 3) })

	ok := r.Dispatch(&Decay{Block: voxel.Snapshot{Block: "LEAVES"}})
	if ok {
		t.Fatalf("expected cancelled event")
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected handler order: %v", order)
	}
}

func TestRouterTypedOn(t *testing.T) {
	r := NewRouter()
	var got *Explosion
	On(r, func(e *Explosion) { got = e })
	if r.HandlerCount(KindExplosion) != 1 {
		t.Fatalf("expected handler registered for explosion")
	}
	if r.HandlerCount(KindDropItem) != 0 {
		t.Fatalf("expected no drop handlers")
	}

	ev := &Explosion{Agent: Agent{ID: "C1", Kind: "CREEPER"}, Radius: 3}
	if !r.Dispatch(ev) {
		t.Fatalf("expected event to survive")
	}
	if got != ev {
		t.Fatalf("typed handler did not receive event")
	}
	if !r.Dispatch(&Decay{}) {
		t.Fatalf("expected unhandled kind to pass")
	}
}

func TestAgentZero(t *testing.T) {
	if !(Agent{}).IsZero() {
		t.Fatalf("expected zero agent")
	}
	if (Agent{ID: "C1"}).IsZero() {
		t.Fatalf("expected non-zero agent")
	}
}
