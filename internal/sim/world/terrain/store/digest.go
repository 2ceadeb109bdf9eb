package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Digest hashes the given chunks in key order. Chunks that are not loaded are
// generated first, so the digest of untouched terrain depends only on the seed.
func (s *ChunkStore) Digest(keys []ChunkKey) string {
	h := sha256.New()
	var tmp [8]byte
	for _, k := range keys {
		if s.unloaded[k] {
			continue
		}
		binary.LittleEndian.PutUint32(tmp[:4], uint32(int32(k.CX)))
		binary.LittleEndian.PutUint32(tmp[4:], uint32(int32(k.CZ)))
		h.Write(tmp[:])
		d := s.GetOrGenChunk(k.CX, k.CZ).Digest()
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// KeysAround returns the chunk keys covering a square of radius r blocks around (x, z).
func KeysAround(x, z, r int) []ChunkKey {
	lo, hi := KeyFor(x-r, z-r), KeyFor(x+r, z+r)
	var keys []ChunkKey
	for cx := lo.CX; cx <= hi.CX; cx++ {
		for cz := lo.CZ; cz <= hi.CZ; cz++ {
			keys = append(keys, ChunkKey{CX: cx, CZ: cz})
		}
	}
	return keys
}
