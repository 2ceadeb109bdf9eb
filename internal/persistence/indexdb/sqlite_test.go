package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"creepair.dev/internal/mend"
	"creepair.dev/internal/persistence/snapshot"
	"creepair.dev/internal/sim/catalogs"
	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/tuning"
	"creepair.dev/internal/sim/voxel"
)

func dirt(x, y, z int) voxel.Snapshot {
	return voxel.Snapshot{Loc: voxel.Location{World: "overworld", Pos: voxel.Vec3i{X: x, Y: y, Z: z}}, Block: "DIRT"}
}

func TestSQLiteIndex_MendLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	a, b := dirt(0, 9, 0), dirt(0, 10, 0)
	idx.RecordOpened(mend.RecordInfo{
		ID:       "m1",
		Source:   event.Agent{ID: "C1", Kind: "CREEPER"},
		OpenedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Captured: []voxel.Snapshot{a, b},
		Pending:  []voxel.Snapshot{a, b},
	})
	idx.BlockRestored("m1", a, true)
	idx.BlockRestored("m1", b, false)
	idx.RecordClosed("m1", 1, 1)
	idx.RecordOpened(mend.RecordInfo{ID: "m2", Source: event.Agent{ID: "C2", Kind: "CREEPER"}, OpenedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)})
	idx.RecordSnapshot("/abs/120.snap.zst", snapshot.SnapshotV1{Header: snapshot.Header{Tick: 120, WorldID: "overworld"}})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	mends, err := r.Mends(ctx, 10)
	if err != nil {
		t.Fatalf("Mends: %v", err)
	}
	if len(mends) != 2 || mends[0].ID != "m2" || mends[0].ClosedAt != "" {
		t.Fatalf("unexpected mends %+v", mends)
	}
	m1 := mends[1]
	if m1.SourceID != "C1" || m1.World != "overworld" || m1.Captured != 2 || m1.Restored != 1 || m1.Failed != 1 || m1.ClosedAt == "" {
		t.Fatalf("unexpected m1 row %+v", m1)
	}

	rs, err := r.Restorations(ctx, "m1")
	if err != nil {
		t.Fatalf("Restorations: %v", err)
	}
	if len(rs) != 2 || rs[0].Pos != [3]int{0, 9, 0} || !rs[0].OK || rs[1].OK {
		t.Fatalf("unexpected restorations %+v", rs)
	}

	sum, err := r.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Mends != 2 || sum.OpenMends != 1 || sum.Restored != 1 || sum.Failed != 1 || sum.ByBlock["DIRT"] != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.LastSnapshot != "/abs/120.snap.zst" {
		t.Fatalf("unexpected last snapshot %q", sum.LastSnapshot)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqClosed}

	s.RecordOpened(mend.RecordInfo{ID: "m"})
	s.BlockRestored("m", dirt(0, 0, 0), true)
	s.RecordClosed("m", 0, 0)
	s.RecordSnapshot("/tmp/1.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropOpened != 1 || st.DropRestored != 1 || st.DropClosed != 1 || st.DropSnapshot != 1 {
		t.Fatalf("unexpected drop stats %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cats, err := catalogs.Defaults()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs WHERE name IN ('blocks_palette','tuning')`).Scan(&n); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected palette and tuning rows, got %d", n)
	}
}

func TestOpenReaderMissingFile(t *testing.T) {
	if _, err := OpenReader(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Fatalf("expected error for missing db")
	}
}
