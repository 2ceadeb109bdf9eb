package mend

import (
	"time"

	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/voxel"
)

// Journal observes record lifecycles. Calls are made with the coordinator lock
// held, so implementations must not call back into the Coordinator and should
// hand off slow work.
type Journal interface {
	RecordOpened(info RecordInfo)
	BlockRestored(recordID string, s voxel.Snapshot, ok bool)
	RecordClosed(recordID string, restored, failed int)
}

type RecordInfo struct {
	ID       string           `json:"id"`
	Source   event.Agent      `json:"source"`
	OpenedAt time.Time        `json:"opened_at"`
	Captured []voxel.Snapshot `json:"captured"`
	Pending  []voxel.Snapshot `json:"pending"`
}

// Info is a copy of the record's current contents.
func (r *Record) Info() RecordInfo {
	captured := make([]voxel.Snapshot, len(r.captured))
	copy(captured, r.captured)
	return RecordInfo{
		ID:       r.id,
		Source:   r.source,
		OpenedAt: time.Now().UTC(),
		Captured: captured,
		Pending:  r.Pending(),
	}
}

// Journals fans out to several journals in order.
type Journals []Journal

func (js Journals) RecordOpened(info RecordInfo) {
	for _, j := range js {
		j.RecordOpened(info)
	}
}

func (js Journals) BlockRestored(recordID string, s voxel.Snapshot, ok bool) {
	for _, j := range js {
		j.BlockRestored(recordID, s, ok)
	}
}

func (js Journals) RecordClosed(recordID string, restored, failed int) {
	for _, j := range js {
		j.RecordClosed(recordID, restored, failed)
	}
}
