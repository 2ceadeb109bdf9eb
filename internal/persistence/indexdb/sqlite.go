package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"creepair.dev/internal/mend"
	"creepair.dev/internal/persistence/snapshot"
	"creepair.dev/internal/sim/catalogs"
	"creepair.dev/internal/sim/tuning"
	"creepair.dev/internal/sim/voxel"
)

// SQLiteIndex is a queryable read model of mend activity. Writes are queued
// and applied by a single writer goroutine; when the queue is full they are
// dropped and counted, since the JSONL journal remains the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropOpened   atomic.Uint64
	dropRestored atomic.Uint64
	dropClosed   atomic.Uint64
	dropSnapshot atomic.Uint64
}

var _ mend.Journal = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqOpened reqKind = iota + 1
	reqRestored
	reqClosed
	reqSnapshot
)

type req struct {
	kind reqKind

	opened   openedRow
	restored restoredRow
	closed   closedRow
	snapshot snapshotRow
}

type openedRow struct {
	ID         string
	SourceID   string
	SourceKind string
	World      string
	OpenedAt   time.Time
	Captured   int
	Pending    int
}

type restoredRow struct {
	MendID string
	At     time.Time
	Block  voxel.Snapshot
	OK     bool
}

type closedRow struct {
	MendID   string
	At       time.Time
	Restored int
	Failed   int
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	WorldID  string
	Seed     int64
	Height   int
	Chunks   int
	Creepers int
	Items    int
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropOpened    uint64 `json:"drop_opened_total"`
	DropRestored  uint64 `json:"drop_restored_total"`
	DropClosed    uint64 `json:"drop_closed_total"`
	DropSnapshot  uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Explosions arrive in bursts of a few hundred blocks each.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS mends (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			source_kind TEXT NOT NULL,
			world TEXT NOT NULL,
			opened_at TEXT NOT NULL,
			captured INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			restored INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			closed_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_mends_source ON mends(source_kind, source_id);`,
		`CREATE TABLE IF NOT EXISTS restorations (
			mend_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at TEXT NOT NULL,
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			block TEXT NOT NULL,
			state TEXT NOT NULL,
			ok INTEGER NOT NULL,
			PRIMARY KEY (mend_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_restorations_pos ON restorations(world, x, z, y);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			world TEXT NOT NULL,
			seed INTEGER NOT NULL,
			height INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			creepers INTEGER NOT NULL,
			items INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropOpened:    s.dropOpened.Load(),
		DropRestored:  s.dropRestored.Load(),
		DropClosed:    s.dropClosed.Load(),
		DropSnapshot:  s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordOpened(info mend.RecordInfo) {
	world := ""
	if len(info.Captured) > 0 {
		world = info.Captured[0].Loc.World
	}
	at := info.OpenedAt
	if at.IsZero() {
		at = time.Now()
	}
	s.enqueue(req{kind: reqOpened, opened: openedRow{
		ID:         info.ID,
		SourceID:   info.Source.ID,
		SourceKind: info.Source.Kind,
		World:      world,
		OpenedAt:   at,
		Captured:   len(info.Captured),
		Pending:    len(info.Pending),
	}}, &s.dropOpened)
}

func (s *SQLiteIndex) BlockRestored(recordID string, b voxel.Snapshot, ok bool) {
	s.enqueue(req{kind: reqRestored, restored: restoredRow{MendID: recordID, At: time.Now(), Block: b, OK: ok}}, &s.dropRestored)
}

func (s *SQLiteIndex) RecordClosed(recordID string, restored, failed int) {
	s.enqueue(req{kind: reqClosed, closed: closedRow{MendID: recordID, At: time.Now(), Restored: restored, Failed: failed}}, &s.dropClosed)
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		WorldID:  snap.Header.WorldID,
		Seed:     snap.Seed,
		Height:   snap.Height,
		Chunks:   len(snap.Chunks),
		Creepers: len(snap.Creepers),
		Items:    len(snap.Items),
	}}, &s.dropSnapshot)
}

// UpsertCatalogs stores the block catalog and the tuning in effect, so a
// database can be read without the config directory it was produced with.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMend, _ := s.db.Prepare(`INSERT OR REPLACE INTO mends(id,source_id,source_kind,world,opened_at,captured,pending) VALUES(?,?,?,?,?,?,?)`)
	insertRestoration, _ := s.db.Prepare(`INSERT OR REPLACE INTO restorations(mend_id,seq,at,world,x,y,z,block,state,ok) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	closeMend, _ := s.db.Prepare(`UPDATE mends SET restored=?, failed=?, closed_at=? WHERE id=?`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,world,seed,height,chunks,creepers,items) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertMend, insertRestoration, closeMend, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		// Restoration sequence numbers per open mend.
		seq = map[string]int{}
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	handle := func(r req) {
		switch r.kind {
		case reqOpened:
			o := r.opened
			exec(insertMend, o.ID, o.SourceID, o.SourceKind, o.World, ts(o.OpenedAt), o.Captured, o.Pending)

		case reqRestored:
			b := r.restored
			n := seq[b.MendID]
			seq[b.MendID] = n + 1
			p := b.Block.Loc.Pos
			exec(insertRestoration, b.MendID, n, ts(b.At), b.Block.Loc.World, p.X, p.Y, p.Z, b.Block.Block, b.Block.State, b.OK)

		case reqClosed:
			c := r.closed
			delete(seq, c.MendID)
			exec(closeMend, c.Restored, c.Failed, ts(c.At), c.MendID)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.WorldID, sn.Seed, sn.Height, sn.Chunks, sn.Creepers, sn.Items)
		}
	}

	// Idle periods still commit, so readers see a burst within commitMaxWait.
	ticker := time.NewTicker(commitMaxWait / 4)
	defer ticker.Stop()
	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil {
				continue
			}
			handle(r)
			if tx != nil && opCount >= commitEvery {
				commit()
			}
		case <-ticker.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		}
	}
}
