package mend

import (
	"io"
	"log"

	"creepair.dev/internal/sim/event"
)

// Listener connects a Coordinator to the host's event router.
type Listener struct {
	c   *Coordinator
	log *log.Logger

	// sources limits which agent kinds open records; empty means all.
	sources map[string]struct{}
}

// Attach subscribes c to r. Only explosions caused by the given agent kinds are
// mended; pass none to mend every explosion.
func Attach(r *event.Router, c *Coordinator, logger *log.Logger, sourceKinds ...string) *Listener {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	l := &Listener{c: c, log: logger, sources: map[string]struct{}{}}
	for _, k := range sourceKinds {
		l.sources[k] = struct{}{}
	}
	event.On(r, l.onExplosion)
	event.On(r, l.onNotify)
	event.On(r, l.onDecay)
	event.On(r, l.onDrop)
	return l
}

func (l *Listener) accepts(a event.Agent) bool {
	if len(l.sources) == 0 {
		return true
	}
	_, ok := l.sources[a.Kind]
	return ok
}

func (l *Listener) onExplosion(ev *event.Explosion) {
	if ev.Cancelled() || !l.accepts(ev.Agent) {
		return
	}
	l.c.OnExplosion(ev.Agent, ev.Txns)
}

func (l *Listener) onNotify(ev *event.NotifyNeighbor) {
	if ev.Cancelled() {
		return
	}
	if l.c.ShouldSuppressNotification(ev.Block, ev.Cause.Parent) {
		l.log.Printf("mend: notify cancelled block=%s parent=%s", ev.Block, ev.Cause.Parent)
		ev.SetCancelled(true)
	}
}

func (l *Listener) onDecay(ev *event.Decay) {
	if ev.Cancelled() {
		return
	}
	if l.c.ShouldSuppressDecay(ev.Block) {
		l.log.Printf("mend: decay cancelled block=%s", ev.Block)
		ev.SetCancelled(true)
	}
}

func (l *Listener) onDrop(ev *event.DropItem) {
	for _, it := range ev.Items {
		if it.Item == "SAPLING" {
			l.log.Printf("mend: sapling drop at %s cause=%v", it.Loc, ev.Cause.Block)
		}
	}
	if ev.Cancelled() || ev.Cause.Block == nil {
		return
	}
	if l.c.ShouldSuppressDrop(*ev.Cause.Block) {
		l.log.Printf("mend: drops cancelled block=%s items=%d", ev.Cause.Block, len(ev.Items))
		ev.SetCancelled(true)
	}
}
