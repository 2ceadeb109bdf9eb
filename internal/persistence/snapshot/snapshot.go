package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is the saved state of one world. Chunks are stored as palette ids;
// Palette maps them back to block names so a reordered catalog still loads.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed      int64 `json:"seed"`
	Height    int   `json:"height"`
	SurfaceY  int   `json:"surface_y"`
	BoundaryR int   `json:"boundary_r"`

	Palette []string  `json:"palette"`
	Chunks  []ChunkV1 `json:"chunks"`
	States  []StateV1 `json:"states,omitempty"`

	Creepers []CreeperV1    `json:"creepers,omitempty"`
	Items    []ItemEntityV1 `json:"items,omitempty"`
	Decay    []DecayV1      `json:"decay,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type ChunkV1 struct {
	CX     int      `json:"cx"`
	CZ     int      `json:"cz"`
	Height int      `json:"height"`
	Blocks []uint16 `json:"blocks"`
}

type StateV1 struct {
	Pos   [3]int `json:"pos"`
	State string `json:"state"`
}

type CreeperV1 struct {
	ID      string `json:"id"`
	Pos     [3]int `json:"pos"`
	Fuse    int    `json:"fuse"`
	Ignited bool   `json:"ignited"`
}

type ItemEntityV1 struct {
	ID    uint64 `json:"id"`
	Item  string `json:"item"`
	Count int    `json:"count"`
	Pos   [3]int `json:"pos"`
	Tick  uint64 `json:"tick"`
}

type DecayV1 struct {
	Pos [3]int `json:"pos"`
	Due uint64 `json:"due"`
}

type CountersV1 struct {
	NextEntity  uint64 `json:"next_entity"`
	NextCreeper uint64 `json:"next_creeper"`
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded snapshot,
// zstd compressed. The file is written next to path and renamed into place.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is duplicated inside the gob payload.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader returns only the header line, without decoding the chunks.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
