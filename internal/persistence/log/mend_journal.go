package log

import (
	"io"
	stdlog "log"
	"path/filepath"
	"time"

	"creepair.dev/internal/mend"
	"creepair.dev/internal/sim/voxel"
)

const (
	EntryOpened   = "opened"
	EntryRestored = "restored"
	EntryClosed   = "closed"
)

// JournalEntry is one line of the mend journal.
type JournalEntry struct {
	TS     string `json:"ts"`
	Kind   string `json:"kind"`
	Record string `json:"record"`

	Source   string `json:"source,omitempty"`
	Captured int    `json:"captured,omitempty"`
	Pending  int    `json:"pending,omitempty"`

	Block *BlockEntry `json:"block,omitempty"`
	OK    *bool       `json:"ok,omitempty"`

	Restored int `json:"restored,omitempty"`
	Failed   int `json:"failed,omitempty"`
}

type BlockEntry struct {
	World string `json:"world"`
	Pos   [3]int `json:"pos"`
	Block string `json:"block"`
	State string `json:"state,omitempty"`
}

func blockEntry(s voxel.Snapshot) *BlockEntry {
	p := s.Loc.Pos
	return &BlockEntry{World: s.Loc.World, Pos: [3]int{p.X, p.Y, p.Z}, Block: s.Block, State: s.State}
}

// MendJournal writes the lifecycle of every mend record as compressed JSONL.
// Write failures are logged and otherwise ignored: the journal is an audit
// trail, never a reason to stop mending.
type MendJournal struct {
	w   *HourlyWriter
	log *stdlog.Logger
}

var _ mend.Journal = (*MendJournal)(nil)

func NewMendJournal(worldDir string, logger *stdlog.Logger) *MendJournal {
	if logger == nil {
		logger = stdlog.New(io.Discard, "", 0)
	}
	return &MendJournal{
		w:   NewHourlyWriter(filepath.Join(worldDir, "mends"), "mends"),
		log: logger,
	}
}

func (j *MendJournal) write(e JournalEntry) {
	e.TS = j.w.now().UTC().Format(time.RFC3339Nano)
	if err := j.w.Write(e); err != nil {
		j.log.Printf("mend journal: %v", err)
	}
}

func (j *MendJournal) RecordOpened(info mend.RecordInfo) {
	j.write(JournalEntry{
		Kind:     EntryOpened,
		Record:   info.ID,
		Source:   info.Source.String(),
		Captured: len(info.Captured),
		Pending:  len(info.Pending),
	})
}

func (j *MendJournal) BlockRestored(recordID string, s voxel.Snapshot, ok bool) {
	j.write(JournalEntry{Kind: EntryRestored, Record: recordID, Block: blockEntry(s), OK: &ok})
}

func (j *MendJournal) RecordClosed(recordID string, restored, failed int) {
	j.write(JournalEntry{Kind: EntryClosed, Record: recordID, Restored: restored, Failed: failed})
}

func (j *MendJournal) Dir() string  { return j.w.dir }
func (j *MendJournal) Close() error { return j.w.Close() }
