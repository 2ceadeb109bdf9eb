package world

import (
	"encoding/hex"

	"creepair.dev/internal/sim/encoding"
	"creepair.dev/internal/sim/world/terrain/store"
)

// ChunkView is one chunk encoded for inspection tools. Blocks is the RLE of
// the chunk's palette ids in x, z, y order.
type ChunkView struct {
	CX      int      `json:"cx"`
	CZ      int      `json:"cz"`
	Height  int      `json:"height"`
	Digest  string   `json:"digest"`
	Palette []string `json:"palette"`
	Blocks  string   `json:"blocks_rle"`
}

// ChunkView encodes chunk (cx, cz), generating it if needed. It reports false
// for unloaded chunks and chunks entirely outside the world boundary. Must run
// on the world goroutine.
func (w *World) ChunkView(cx, cz int) (ChunkView, bool) {
	x, z := cx*store.ChunkSize, cz*store.ChunkSize
	if !w.chunks.IsLoaded(x, z) {
		return ChunkView{}, false
	}
	if r := w.cfg.BoundaryR; r > 0 && (x > r || z > r || x+store.ChunkSize-1 < -r || z+store.ChunkSize-1 < -r) {
		return ChunkView{}, false
	}
	ch := w.chunks.GetOrGenChunk(cx, cz)
	d := ch.Digest()
	return ChunkView{
		CX:      cx,
		CZ:      cz,
		Height:  ch.Height,
		Digest:  hex.EncodeToString(d[:]),
		Palette: w.catalogs.Blocks.Palette,
		Blocks:  encoding.EncodeRLE(ch.Blocks),
	}, true
}
