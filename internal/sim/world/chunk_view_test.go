package world

import (
	"testing"

	"creepair.dev/internal/sim/encoding"
	"creepair.dev/internal/sim/world/terrain/store"
)

func TestChunkViewRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	w.SetBlock(v(1, 11, 2), "BOOKSHELF", "")

	cv, ok := w.ChunkView(0, 0)
	if !ok {
		t.Fatalf("expected chunk 0,0")
	}
	ids, err := encoding.DecodeRLE(cv.Blocks, store.ChunkSize*store.ChunkSize*cv.Height)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	at := func(x, y, z int) string { return cv.Palette[ids[x+z*store.ChunkSize+y*store.ChunkSize*store.ChunkSize]] }
	if got := at(1, 11, 2); got != "BOOKSHELF" {
		t.Fatalf("expected BOOKSHELF, got %s", got)
	}
	if got := at(1, 0, 2); got != "BEDROCK" {
		t.Fatalf("expected BEDROCK at y=0, got %s", got)
	}
	if cv.Digest == "" {
		t.Fatalf("expected digest")
	}

	w.Chunks().Unload(store.ChunkKey{CX: 0, CZ: 0})
	if _, ok := w.ChunkView(0, 0); ok {
		t.Fatalf("expected unloaded chunk to be hidden")
	}
}
