package gen

import "creepair.dev/internal/sim/world/logic/mathx"

// Palette maps the terrain materials to catalog palette ids.
type Palette struct {
	Air       uint16
	Bedrock   uint16
	Stone     uint16
	Dirt      uint16
	Grass     uint16
	TallGrass uint16
	Sand      uint16
	Sandstone uint16
	Gravel    uint16
	Log       uint16
	Leaves    uint16
}

type Params struct {
	Seed     int64
	Height   int
	SurfaceY int
	// TreePermille is the chance per column of a tree trunk.
	TreePermille int
	// DesertRegionSize is the side of the square regions that may turn to sand.
	DesertRegionSize int
}

func FloorDiv(a, b int) int { return mathx.FloorDiv(a, b) }

func Mod(a, b int) int { return mathx.Mod(a, b) }

func Hash2(seed int64, x, z int) uint64 { return mathx.Hash2(seed, x, z) }

func ClampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}

func Desert(p Params, x, z int) bool {
	size := p.DesertRegionSize
	if size <= 0 {
		return false
	}
	return Hash2(p.Seed+301, FloorDiv(x, size), FloorDiv(z, size))%4 == 0
}

// TreeAt reports whether a trunk starts on the surface of column (x, z).
func TreeAt(p Params, x, z int) bool {
	if Desert(p, x, z) {
		return false
	}
	return Hash2(p.Seed+201, x, z)%1000 < uint64(ClampPermille(p.TreePermille))
}

const (
	trunkHeight = 5
	canopyR     = 2
)

// Column generates world column (x, z), calling set for every non-air block.
func Column(p Params, pal Palette, x, z int, set func(y int, b uint16)) {
	top := p.SurfaceY
	if top >= p.Height {
		top = p.Height - 1
	}
	desert := Desert(p, x, z)
	for y := 0; y <= top; y++ {
		switch {
		case y == 0:
			set(y, pal.Bedrock)
		case y < top-3:
			set(y, pal.Stone)
		case desert && y == top-3:
			set(y, pal.Sandstone)
		case desert && y == top-2 && Hash2(p.Seed+302, x, z)%3 == 0:
			set(y, pal.Gravel)
		case desert:
			set(y, pal.Sand)
		case y < top:
			set(y, pal.Dirt)
		default:
			set(y, pal.Grass)
		}
	}
	if desert {
		return
	}

	trunk := TreeAt(p, x, z)
	if trunk {
		for y := top + 1; y <= top+trunkHeight && y < p.Height; y++ {
			set(y, pal.Log)
		}
	}
	canopy := map[int]bool{}
	for dz := -canopyR; dz <= canopyR; dz++ {
		for dx := -canopyR; dx <= canopyR; dx++ {
			if (dx != 0 || dz != 0) && TreeAt(p, x+dx, z+dz) {
				inner := mathx.AbsInt(dx) <= 1 && mathx.AbsInt(dz) <= 1
				canopy[top+trunkHeight-1] = true
				canopy[top+trunkHeight] = true
				if inner {
					canopy[top+trunkHeight+1] = true
				}
			}
		}
	}
	if trunk {
		canopy[top+trunkHeight+1] = true
	}
	for y := top + 1; y < p.Height; y++ {
		if !canopy[y] || (trunk && y <= top+trunkHeight) {
			continue
		}
		set(y, pal.Leaves)
	}
	if !trunk && len(canopy) == 0 && top+1 < p.Height && Hash2(p.Seed+401, x, z)%10 == 0 {
		set(top+1, pal.TallGrass)
	}
}
