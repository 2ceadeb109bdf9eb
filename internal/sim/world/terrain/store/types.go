package store

import (
	"crypto/sha256"
	"encoding/binary"

	genpkg "creepair.dev/internal/sim/world/terrain/gen"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height, index x + z*16 + y*256

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	Params    genpkg.Params
	Palette   genpkg.Palette
	BoundaryR int // blocks; 0 = unbounded
}

// ChunkStore holds the loaded chunks of one world. Chunks are generated on
// first access unless they were explicitly unloaded; an unloaded chunk cannot
// be read or written until Load is called for it.
type ChunkStore struct {
	Gen      WorldGen
	Chunks   map[ChunkKey]*Chunk
	unloaded map[ChunkKey]bool
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	if gen.Params.Height <= 0 {
		gen.Params.Height = 64
	}
	return &ChunkStore{
		Gen:      gen,
		Chunks:   map[ChunkKey]*Chunk{},
		unloaded: map[ChunkKey]bool{},
	}
}

func (s *ChunkStore) Height() int { return s.Gen.Params.Height }
