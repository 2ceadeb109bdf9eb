package store

import genpkg "creepair.dev/internal/sim/world/terrain/gen"

func (s *ChunkStore) GenerateChunk(ch *Chunk) {
	for i := range ch.Blocks {
		ch.Blocks[i] = s.Gen.Palette.Air
	}
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			wx := ch.CX*ChunkSize + x
			wz := ch.CZ*ChunkSize + z
			genpkg.Column(s.Gen.Params, s.Gen.Palette, wx, wz, func(y int, b uint16) {
				if y >= 0 && y < ch.Height {
					ch.Blocks[ch.index(x, y, z)] = b
				}
			})
		}
	}
}
