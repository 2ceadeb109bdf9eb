package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Reader queries an index written by SQLiteIndex. It may be opened while the
// server is still writing; WAL mode keeps readers consistent.
type Reader struct {
	db *sql.DB
}

type MendRow struct {
	ID         string `json:"id"`
	SourceID   string `json:"source_id"`
	SourceKind string `json:"source_kind"`
	World      string `json:"world"`
	OpenedAt   string `json:"opened_at"`
	Captured   int    `json:"captured"`
	Pending    int    `json:"pending"`
	Restored   int    `json:"restored"`
	Failed     int    `json:"failed"`
	ClosedAt   string `json:"closed_at,omitempty"`
}

type RestorationRow struct {
	Seq   int    `json:"seq"`
	At    string `json:"at"`
	World string `json:"world"`
	Pos   [3]int `json:"pos"`
	Block string `json:"block"`
	State string `json:"state,omitempty"`
	OK    bool   `json:"ok"`
}

type Summary struct {
	Mends        int            `json:"mends"`
	OpenMends    int            `json:"open_mends"`
	Restored     int            `json:"restored"`
	Failed       int            `json:"failed"`
	ByBlock      map[string]int `json:"by_block"`
	LastSnapshot string         `json:"last_snapshot,omitempty"`
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// Mends returns the most recently opened mends, newest first.
func (r *Reader) Mends(ctx context.Context, limit int) ([]MendRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id,source_id,source_kind,world,opened_at,captured,pending,restored,failed,COALESCE(closed_at,'')
		FROM mends ORDER BY opened_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query mends: %w", err)
	}
	defer rows.Close()
	var out []MendRow
	for rows.Next() {
		var m MendRow
		if err := rows.Scan(&m.ID, &m.SourceID, &m.SourceKind, &m.World, &m.OpenedAt, &m.Captured, &m.Pending, &m.Restored, &m.Failed, &m.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Restorations lists the restore attempts of one mend in the order they ran.
func (r *Reader) Restorations(ctx context.Context, mendID string) ([]RestorationRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT seq,at,world,x,y,z,block,state,ok
		FROM restorations WHERE mend_id=? ORDER BY seq`, mendID)
	if err != nil {
		return nil, fmt.Errorf("query restorations: %w", err)
	}
	defer rows.Close()
	var out []RestorationRow
	for rows.Next() {
		var x RestorationRow
		if err := rows.Scan(&x.Seq, &x.At, &x.World, &x.Pos[0], &x.Pos[1], &x.Pos[2], &x.Block, &x.State, &x.OK); err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

func (r *Reader) Summary(ctx context.Context) (Summary, error) {
	s := Summary{ByBlock: map[string]int{}}
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(closed_at IS NULL),0) FROM mends`)
	if err := row.Scan(&s.Mends, &s.OpenMends); err != nil {
		return s, fmt.Errorf("count mends: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT block, ok, COUNT(*) FROM restorations GROUP BY block, ok`)
	if err != nil {
		return s, fmt.Errorf("count restorations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			block string
			ok    bool
			n     int
		)
		if err := rows.Scan(&block, &ok, &n); err != nil {
			return s, err
		}
		if ok {
			s.Restored += n
			s.ByBlock[block] += n
		} else {
			s.Failed += n
		}
	}
	if err := rows.Err(); err != nil {
		return s, err
	}
	err = r.db.QueryRowContext(ctx, `SELECT path FROM snapshots ORDER BY tick DESC LIMIT 1`).Scan(&s.LastSnapshot)
	if err != nil && err != sql.ErrNoRows {
		return s, fmt.Errorf("last snapshot: %w", err)
	}
	return s, nil
}
