package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"creepair.dev/internal/mend"
	"creepair.dev/internal/persistence/indexdb"
	persistlog "creepair.dev/internal/persistence/log"
	"creepair.dev/internal/persistence/snapshot"
	"creepair.dev/internal/sim/world"
)

// openIndex opens the sqlite read model. It returns nil when indexing is off.
func openIndex(worldDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CP_INDEX_BACKEND")))
	switch backend {
	case "", "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	case "none", "off", "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported CP_INDEX_BACKEND: %s", backend)
	}
}

// journals collects the enabled mend journals. A nil index is left out so the
// slice never holds a typed nil.
func journals(mj *persistlog.MendJournal, idx *indexdb.SQLiteIndex) mend.Journal {
	var js mend.Journals
	if mj != nil {
		js = append(js, mj)
	}
	if idx != nil {
		js = append(js, idx)
	}
	if len(js) == 0 {
		return nil
	}
	return js
}

type snapshotSaver struct {
	w        *world.World
	worldDir string
	idx      *indexdb.SQLiteIndex
	log      *log.Logger
}

// Save exports the world on its own goroutine and writes the snapshot.
func (s *snapshotSaver) Save(ctx context.Context) (string, error) {
	var snap snapshot.SnapshotV1
	if err := s.w.Do(ctx, func() { snap = s.w.ExportSnapshot() }); err != nil {
		return "", err
	}
	return s.write(snap)
}

// SaveStopped is Save for a world whose loop has already returned.
func (s *snapshotSaver) SaveStopped() (string, error) {
	return s.write(s.w.ExportSnapshot())
}

func (s *snapshotSaver) write(snap snapshot.SnapshotV1) (string, error) {
	path := filepath.Join(s.worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if s.idx != nil {
		s.idx.RecordSnapshot(path, snap)
	}
	s.log.Printf("snapshot written tick=%d path=%s", snap.Header.Tick, path)
	return path, nil
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
