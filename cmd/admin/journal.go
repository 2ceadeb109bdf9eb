package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	persistlog "creepair.dev/internal/persistence/log"
)

// journalCmd prints mend journal entries, optionally for a single record.
func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	record := fs.String("record", "", "only entries of this mend record")
	kind := fs.String("kind", "", "only entries of this kind (opened|restored|closed)")
	summary := fs.Bool("summary", false, "print per-record totals instead of entries")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	files, err := persistlog.Files(worldPath(*dataDir, *worldID, "mends"), "mends")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	entries, err := readJournal(files, journalFilter{Record: *record, Kind: *kind})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *summary {
		for _, t := range summarize(entries) {
			_ = enc.Encode(t)
		}
		return
	}
	for _, e := range entries {
		_ = enc.Encode(e)
	}
}

type journalFilter struct {
	Record string
	Kind   string
}

func (f journalFilter) match(e persistlog.JournalEntry) bool {
	return (f.Record == "" || e.Record == f.Record) && (f.Kind == "" || e.Kind == f.Kind)
}

func readJournal(files []string, f journalFilter) ([]persistlog.JournalEntry, error) {
	var out []persistlog.JournalEntry
	for _, path := range files {
		err := persistlog.ReadLines(path, func(line []byte) error {
			var e persistlog.JournalEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", path, err)
			}
			if f.match(e) {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type recordTotals struct {
	Record   string `json:"record"`
	Source   string `json:"source,omitempty"`
	Captured int    `json:"captured"`
	Restored int    `json:"restored"`
	Failed   int    `json:"failed"`
	Closed   bool   `json:"closed"`
}

// summarize folds entries into one line per record, in order of first appearance.
func summarize(entries []persistlog.JournalEntry) []recordTotals {
	var order []string
	byID := map[string]*recordTotals{}
	for _, e := range entries {
		t := byID[e.Record]
		if t == nil {
			t = &recordTotals{Record: e.Record}
			byID[e.Record] = t
			order = append(order, e.Record)
		}
		switch e.Kind {
		case persistlog.EntryOpened:
			t.Source = e.Source
			t.Captured = e.Captured
		case persistlog.EntryRestored:
			if e.OK != nil && *e.OK {
				t.Restored++
			} else {
				t.Failed++
			}
		case persistlog.EntryClosed:
			t.Closed = true
		}
	}
	out := make([]recordTotals, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
