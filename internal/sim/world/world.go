package world

import (
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"creepair.dev/internal/sim/catalogs"
	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/scheduler"
	"creepair.dev/internal/sim/voxel"
	genpkg "creepair.dev/internal/sim/world/terrain/gen"
	"creepair.dev/internal/sim/world/terrain/store"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64
	Height     int
	SurfaceY   int
	BoundaryR  int

	TreePermille     int
	DesertRegionSize int

	CreeperRadius    int
	CreeperFuseTicks int
	// DecayDelayTicks is how long unsupported leaves linger before decaying.
	DecayDelayTicks int
}

func (c *WorldConfig) normalize() {
	if c.ID == "" {
		c.ID = "overworld"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.SurfaceY <= 0 || c.SurfaceY >= c.Height {
		c.SurfaceY = c.Height / 2
	}
	if c.CreeperRadius <= 0 {
		c.CreeperRadius = 3
	}
	if c.CreeperFuseTicks <= 0 {
		c.CreeperFuseTicks = 30
	}
	if c.DecayDelayTicks <= 0 {
		c.DecayDelayTicks = 20
	}
}

// World is a single-threaded voxel simulation.
// All state must be accessed only from the world loop goroutine; other
// goroutines go through Do.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	air      uint16

	tick atomic.Uint64

	chunks *store.ChunkStore
	// states holds extended block state for positions that have one.
	states map[voxel.Vec3i]string

	events *event.Router
	sched  *scheduler.Scheduler
	log    *log.Logger

	creepers map[string]*Creeper
	items    []ItemEntity
	decay    []decayEntry

	nextEntity   atomic.Uint64
	nextAgentNum atomic.Uint64

	cmds     chan func()
	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, logger *log.Logger) (*World, error) {
	cfg.normalize()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	b := func(id string) (uint16, error) {
		v, ok := cats.Blocks.Index[id]
		if !ok {
			return 0, fmt.Errorf("missing block id in palette: %s", id)
		}
		return v, nil
	}
	var pal genpkg.Palette
	for _, f := range []struct {
		id  string
		dst *uint16
	}{
		{"AIR", &pal.Air},
		{"BEDROCK", &pal.Bedrock},
		{"STONE", &pal.Stone},
		{"DIRT", &pal.Dirt},
		{"GRASS", &pal.Grass},
		{"TALLGRASS", &pal.TallGrass},
		{"SAND", &pal.Sand},
		{"SANDSTONE", &pal.Sandstone},
		{"GRAVEL", &pal.Gravel},
		{"LOG", &pal.Log},
		{"LEAVES", &pal.Leaves},
	} {
		v, err := b(f.id)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	gen := store.WorldGen{
		Params: genpkg.Params{
			Seed:             cfg.Seed,
			Height:           cfg.Height,
			SurfaceY:         cfg.SurfaceY,
			TreePermille:     cfg.TreePermille,
			DesertRegionSize: cfg.DesertRegionSize,
		},
		Palette:   pal,
		BoundaryR: cfg.BoundaryR,
	}
	w := &World{
		cfg:      cfg,
		catalogs: cats,
		air:      pal.Air,
		chunks:   store.NewChunkStore(gen),
		states:   map[voxel.Vec3i]string{},
		events:   event.NewRouter(),
		sched:    scheduler.New(),
		log:      logger,
		creepers: map[string]*Creeper{},
		cmds:     make(chan func(), 64),
		stop:     make(chan struct{}),
	}
	return w, nil
}

func (w *World) ID() string                       { return w.cfg.ID }
func (w *World) Config() WorldConfig              { return w.cfg }
func (w *World) Events() *event.Router            { return w.events }
func (w *World) Scheduler() *scheduler.Scheduler  { return w.sched }
func (w *World) Catalogs() *catalogs.Catalogs     { return w.catalogs }
func (w *World) Chunks() *store.ChunkStore        { return w.chunks }
func (w *World) CurrentTick() uint64              { return w.tick.Load() }
func (w *World) Loc(p voxel.Vec3i) voxel.Location { return voxel.Location{World: w.cfg.ID, Pos: p} }

// Spawn is the first air block above the surface at the origin.
func (w *World) Spawn() voxel.Vec3i {
	return voxel.Vec3i{X: 0, Y: w.cfg.SurfaceY + 1, Z: 0}
}

type Stats struct {
	Tick         uint64 `json:"tick"`
	Creepers     int    `json:"creepers"`
	Items        int    `json:"items"`
	PendingDecay int    `json:"pending_decay"`
	LoadedChunks int    `json:"loaded_chunks"`
	Tasks        int    `json:"tasks"`
}

func (w *World) Stats() Stats {
	return Stats{
		Tick:         w.CurrentTick(),
		Creepers:     len(w.creepers),
		Items:        len(w.items),
		PendingDecay: len(w.decay),
		LoadedChunks: len(w.chunks.Chunks),
		Tasks:        w.sched.Pending(),
	}
}

func (w *World) creeperIDs() []string {
	ids := make([]string, 0, len(w.creepers))
	for id := range w.creepers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
