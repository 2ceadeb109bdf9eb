package mend

import (
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/google/uuid"

	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/voxel"
)

// restoreFlags overwrite whatever is at the location and never re-trigger
// neighbour updates, so restoring cannot re-enter the coordinator.
var restoreFlags = voxel.RestoreFlags{Force: true, Notify: false}

// Record tracks one explosion: everything it destroyed and the subset still to
// be restored. It is not safe for concurrent use; the Coordinator serialises
// access.
type Record struct {
	id     string
	source event.Agent

	// Full footprint of the explosion, used for relation queries.
	captured []voxel.Snapshot
	// Blocks still to be restored, sorted bottom-up on the first RestoreBatch.
	pending []voxel.Snapshot
	sorted  bool

	restorer voxel.Restorer
	logger   *log.Logger
	verbose  bool

	restored int
	failed   int

	// observe is called after each restore attempt.
	observe func(r *Record, s voxel.Snapshot, ok bool)
}

func NewRecord(source event.Agent, restorer voxel.Restorer, logger *log.Logger) *Record {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Record{
		id:       uuid.NewString(),
		source:   source,
		restorer: restorer,
		logger:   logger,
	}
}

// Capture adds s to the explosion footprint. Must not be called once
// restoration has started.
func (r *Record) Capture(s voxel.Snapshot) {
	r.captured = append(r.captured, s)
}

// MarkPending queues s for restoration. Eligibility is the caller's decision.
func (r *Record) MarkPending(s voxel.Snapshot) {
	r.pending = append(r.pending, s)
}

// RestoreBatch restores up to limit pending blocks, lowest first, and reports
// whether any remain. A block whose location can no longer be written is still
// consumed so that it cannot hold the record open forever.
func (r *Record) RestoreBatch(limit int) bool {
	if !r.sorted {
		sort.SliceStable(r.pending, func(i, j int) bool {
			return r.pending[i].Loc.Pos.Y < r.pending[j].Loc.Pos.Y
		})
		r.sorted = true
	}
	n := min(limit, len(r.pending))
	for i := 0; i < n; i++ {
		s := r.pending[0]
		r.pending[0] = voxel.Snapshot{}
		r.pending = r.pending[1:]

		ok := r.restore(s)
		if ok {
			r.restored++
		} else {
			r.failed++
		}
		if r.verbose {
			r.logger.Printf("mend %s: restore(%d) %s ok=%v", r.id, limit, s, ok)
		}
		if r.observe != nil {
			r.observe(r, s, ok)
		}
	}
	if len(r.pending) == 0 {
		r.pending = nil
	}
	return len(r.pending) > 0
}

func (r *Record) restore(s voxel.Snapshot) (ok bool) {
	if r.restorer == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("mend %s: restore %s panicked: %v", r.id, s, rec)
			ok = false
		}
	}()
	return r.restorer.Restore(s, restoreFlags)
}

// ContainsCaptured reports whether s is part of the footprint. Snapshots match
// by location, block type and state; capture identity is ignored.
func (r *Record) ContainsCaptured(s voxel.Snapshot) bool {
	for _, c := range r.captured {
		if c.Same(s) {
			return true
		}
	}
	return false
}

// ContainsPending is ContainsCaptured restricted to blocks not yet restored.
func (r *Record) ContainsPending(s voxel.Snapshot) bool {
	for _, p := range r.pending {
		if p.Same(s) {
			return true
		}
	}
	return false
}

// IsRelated reports whether loc was part of the footprint, whatever the state.
func (r *Record) IsRelated(loc voxel.Location) bool {
	for _, c := range r.captured {
		if c.Loc == loc {
			return true
		}
	}
	return false
}

func (r *Record) ID() string          { return r.id }
func (r *Record) Source() event.Agent { return r.source }
func (r *Record) CapturedLen() int    { return len(r.captured) }
func (r *Record) PendingLen() int     { return len(r.pending) }

// Restored reports how many restore attempts succeeded and failed so far.
func (r *Record) Restored() (ok, failed int) { return r.restored, r.failed }

// Pending returns a copy of the blocks still to restore, in restore order once sorted.
func (r *Record) Pending() []voxel.Snapshot {
	out := make([]voxel.Snapshot, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *Record) String() string {
	return fmt.Sprintf("Mend{id=%s source=%s captured=%d pending=%d}", r.id, r.source, len(r.captured), len(r.pending))
}
