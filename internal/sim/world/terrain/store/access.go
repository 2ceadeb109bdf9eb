package store

import (
	"fmt"
	"sort"

	genpkg "creepair.dev/internal/sim/world/terrain/gen"
)

func (s *ChunkStore) InBounds(x, y, z int) bool {
	if y < 0 || y >= s.Height() {
		return false
	}
	if s.Gen.BoundaryR > 0 {
		if x < -s.Gen.BoundaryR || x > s.Gen.BoundaryR || z < -s.Gen.BoundaryR || z > s.Gen.BoundaryR {
			return false
		}
	}
	return true
}

func KeyFor(x, z int) ChunkKey {
	return ChunkKey{CX: genpkg.FloorDiv(x, ChunkSize), CZ: genpkg.FloorDiv(z, ChunkSize)}
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// IsLoaded reports whether the column (x, z) can be accessed.
func (s *ChunkStore) IsLoaded(x, z int) bool {
	return !s.unloaded[KeyFor(x, z)]
}

// Unload drops a chunk and refuses access to it until Load.
func (s *ChunkStore) Unload(k ChunkKey) {
	delete(s.Chunks, k)
	s.unloaded[k] = true
}

// Load makes a previously unloaded chunk accessible again. It is regenerated
// from the world seed on the next access.
func (s *ChunkStore) Load(k ChunkKey) {
	delete(s.unloaded, k)
}

func (s *ChunkStore) GetBlock(x, y, z int) uint16 {
	ch := s.chunkAt(x, y, z)
	if ch == nil {
		return s.Gen.Palette.Air
	}
	return ch.Get(genpkg.Mod(x, ChunkSize), y, genpkg.Mod(z, ChunkSize))
}

// SetBlock writes b and reports whether the location was writable.
func (s *ChunkStore) SetBlock(x, y, z int, b uint16) bool {
	ch := s.chunkAt(x, y, z)
	if ch == nil {
		return false
	}
	ch.Set(genpkg.Mod(x, ChunkSize), y, genpkg.Mod(z, ChunkSize), b)
	return true
}

func (s *ChunkStore) chunkAt(x, y, z int) *Chunk {
	if !s.InBounds(x, y, z) {
		return nil
	}
	k := KeyFor(x, z)
	if s.unloaded[k] {
		return nil
	}
	return s.GetOrGenChunk(k.CX, k.CZ)
}

func (s *ChunkStore) GetOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.Chunks[k]; ok {
		return ch
	}
	h := s.Height()
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: h,
		Blocks: make([]uint16, ChunkSize*ChunkSize*h),
	}
	s.GenerateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.Chunks[k] = ch
	return ch
}

// Put replaces chunk (cx, cz) with blocks, marking it loaded.
func (s *ChunkStore) Put(cx, cz int, blocks []uint16) error {
	want := ChunkSize * ChunkSize * s.Height()
	if len(blocks) != want {
		return fmt.Errorf("chunk %d,%d: %d blocks, want %d", cx, cz, len(blocks), want)
	}
	k := ChunkKey{CX: cx, CZ: cz}
	delete(s.unloaded, k)
	s.Chunks[k] = &Chunk{CX: cx, CZ: cz, Height: s.Height(), Blocks: blocks, dirty: true}
	return nil
}
