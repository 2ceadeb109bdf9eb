package mend

import (
	"io"
	"log"
	"sort"
	"sync"

	"creepair.dev/internal/sim/event"
	"creepair.dev/internal/sim/scheduler"
	"creepair.dev/internal/sim/voxel"
)

const (
	DefaultPeriodTicks = 10
	DefaultMaxPerTick  = 5

	taskName = "Restore Creeper Damage"
)

// DefaultProtectedTypes are the natural terrain blocks restored after an explosion.
var DefaultProtectedTypes = []string{
	"DIRT", "GRASS", "TALLGRASS", "STONE", "GRAVEL", "SAND",
	"ICE", "PACKED_ICE", "VINE", "MOSSY_COBBLESTONE", "SANDSTONE",
}

// Scheduler installs periodic callbacks measured in ticks.
type Scheduler interface {
	Submit(name string, intervalTicks int, fn func()) *scheduler.Task
}

type Config struct {
	ProtectedTypes []string
	PeriodTicks    int
	MaxPerTick     int

	Restorer voxel.Restorer
	Logger   *log.Logger
	// Verbose logs every restored block.
	Verbose bool
	// Journal receives record lifecycle notifications. Optional.
	Journal Journal
}

// Coordinator owns the live mend records. Every exported method takes the same
// mutex, so events, ticks and admin reads may come from different goroutines.
// Start and Reconfigure call into the Scheduler and must run on the goroutine
// that advances it.
type Coordinator struct {
	mu sync.Mutex

	live      []*Record
	protected map[string]struct{}

	period     int
	maxPerTick int

	sched Scheduler
	task  *scheduler.Task

	restorer voxel.Restorer
	log      *log.Logger
	verbose  bool
	journal  Journal

	stats Stats
}

type Stats struct {
	LiveRecords    int      `json:"live_records"`
	PendingBlocks  int      `json:"pending_blocks"`
	CapturedBlocks int      `json:"captured_blocks"`
	PeriodTicks    int      `json:"period_ticks"`
	MaxPerTick     int      `json:"max_per_tick"`
	ProtectedTypes []string `json:"protected_types"`

	RecordsOpened    uint64 `json:"records_opened"`
	RecordsExhausted uint64 `json:"records_exhausted"`
	BlocksRestored   uint64 `json:"blocks_restored"`
	BlocksFailed     uint64 `json:"blocks_failed"`

	SuppressedNotify uint64 `json:"suppressed_notify"`
	SuppressedDecay  uint64 `json:"suppressed_decay"`
	SuppressedDrop   uint64 `json:"suppressed_drop"`
}

func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.PeriodTicks <= 0 {
		cfg.PeriodTicks = DefaultPeriodTicks
	}
	if cfg.MaxPerTick <= 0 {
		cfg.MaxPerTick = DefaultMaxPerTick
	}
	protected := cfg.ProtectedTypes
	if protected == nil {
		protected = DefaultProtectedTypes
	}
	c := &Coordinator{
		period:     cfg.PeriodTicks,
		maxPerTick: cfg.MaxPerTick,
		restorer:   cfg.Restorer,
		log:        logger,
		verbose:    cfg.Verbose,
		journal:    cfg.Journal,
	}
	c.setProtectedLocked(protected)
	return c
}

// Start installs the periodic restore task on s, replacing any previous one.
func (c *Coordinator) Start(s Scheduler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sched = s
	c.scheduleLocked()
}

// Stop cancels the periodic restore task. Live records are kept.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.task.Cancel()
	c.task = nil
}

// Reconfigure replaces the tick period and batch size. The running task is
// cancelled before the new one is submitted, so at most one is ever active.
func (c *Coordinator) Reconfigure(periodTicks, maxPerTick int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if maxPerTick >= 0 {
		c.maxPerTick = maxPerTick
	}
	if periodTicks > 0 {
		c.period = periodTicks
	}
	if c.sched != nil {
		c.scheduleLocked()
	}
	c.log.Printf("mend: period=%d max_per_tick=%d", c.period, c.maxPerTick)
}

// SetMaxPerTick changes only the batch size; the running task is left alone.
func (c *Coordinator) SetMaxPerTick(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	c.maxPerTick = n
}

func (c *Coordinator) scheduleLocked() {
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	if c.sched == nil {
		return
	}
	c.task = c.sched.Submit(taskName, c.period, c.Tick)
}

func (c *Coordinator) SetProtectedTypes(tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setProtectedLocked(tags)
}

func (c *Coordinator) setProtectedLocked(tags []string) {
	c.protected = make(map[string]struct{}, len(tags))
	for _, t := range tags {
		c.protected[t] = struct{}{}
	}
}

func (c *Coordinator) ProtectedTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protectedListLocked()
}

func (c *Coordinator) protectedListLocked() []string {
	out := make([]string, 0, len(c.protected))
	for t := range c.protected {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// OnExplosion opens a record for the blocks an explosion destroyed. Every
// original state is captured; protected ones are also queued for restoration.
// The record is kept even with nothing pending so that its footprint still
// suppresses side effects until the next tick prunes it.
func (c *Coordinator) OnExplosion(agent event.Agent, txns []event.Transaction) *Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := NewRecord(agent, c.restorer, c.log)
	r.verbose = c.verbose
	r.observe = c.observeLocked
	for _, tx := range txns {
		r.Capture(tx.Original)
	}
	for _, tx := range txns {
		if _, ok := c.protected[tx.Original.Block]; ok {
			r.MarkPending(tx.Original)
		}
	}
	c.live = append(c.live, r)
	c.stats.RecordsOpened++
	c.log.Printf("mend %s: opened source=%s captured=%d pending=%d", r.id, agent, r.CapturedLen(), r.PendingLen())
	if c.journal != nil {
		c.journal.RecordOpened(r.Info())
	}
	return r
}

// observeLocked runs inside Tick, with c.mu held.
func (c *Coordinator) observeLocked(r *Record, s voxel.Snapshot, ok bool) {
	if ok {
		c.stats.BlocksRestored++
	} else {
		c.stats.BlocksFailed++
		c.log.Printf("mend %s: could not restore %s", r.id, s)
	}
	if c.journal != nil {
		c.journal.BlockRestored(r.id, s, ok)
	}
}

// Tick gives every live record one batch and drops the ones with nothing left.
func (c *Coordinator) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.live) == 0 {
		return
	}

	batch := make([]*Record, len(c.live))
	copy(batch, c.live)
	var done []*Record
	for _, r := range batch {
		if !r.RestoreBatch(c.maxPerTick) {
			done = append(done, r)
		}
	}
	c.removeLocked(done)
}

// Drain restores everything still pending, ignoring the batch size, and closes
// every record. It returns the number of blocks attempted. Used at shutdown so
// that a saved world carries no craters waiting to be mended.
func (c *Coordinator) Drain() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := make([]*Record, len(c.live))
	copy(batch, c.live)
	n := 0
	for _, r := range batch {
		n += r.PendingLen()
		r.RestoreBatch(r.PendingLen())
	}
	c.removeLocked(batch)
	return n
}

func (c *Coordinator) removeLocked(done []*Record) {
	if len(done) == 0 {
		return
	}
	gone := make(map[*Record]struct{}, len(done))
	for _, r := range done {
		gone[r] = struct{}{}
		c.stats.RecordsExhausted++
		ok, failed := r.Restored()
		c.log.Printf("mend %s: exhausted source=%s restored=%d failed=%d", r.id, r.source, ok, failed)
		if c.journal != nil {
			c.journal.RecordClosed(r.id, ok, failed)
		}
	}
	keep := c.live[:0]
	for _, r := range c.live {
		if _, ok := gone[r]; !ok {
			keep = append(keep, r)
		}
	}
	for i := len(keep); i < len(c.live); i++ {
		c.live[i] = nil
	}
	c.live = keep
}

// ShouldSuppressNotification reports whether a neighbour update for block,
// caused by parent, belongs to a live explosion.
func (c *Coordinator) ShouldSuppressNotification(block voxel.Snapshot, parent event.Agent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.live {
		if (!parent.IsZero() && r.source == parent) || r.IsRelated(block.Loc) {
			c.stats.SuppressedNotify++
			return true
		}
	}
	return false
}

func (c *Coordinator) ShouldSuppressDecay(block voxel.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.relatedLocked(block.Loc) {
		c.stats.SuppressedDecay++
		return true
	}
	return false
}

func (c *Coordinator) ShouldSuppressDrop(block voxel.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.relatedLocked(block.Loc) {
		c.stats.SuppressedDrop++
		return true
	}
	return false
}

func (c *Coordinator) relatedLocked(loc voxel.Location) bool {
	for _, r := range c.live {
		if r.IsRelated(loc) {
			return true
		}
	}
	return false
}

// RecordsFor returns the ids of live records whose footprint contains loc.
func (c *Coordinator) RecordsFor(loc voxel.Location) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for _, r := range c.live {
		if r.IsRelated(loc) {
			ids = append(ids, r.id)
		}
	}
	return ids
}

func (c *Coordinator) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	st.LiveRecords = len(c.live)
	for _, r := range c.live {
		st.PendingBlocks += r.PendingLen()
		st.CapturedBlocks += r.CapturedLen()
	}
	st.PeriodTicks = c.period
	st.MaxPerTick = c.maxPerTick
	st.ProtectedTypes = c.protectedListLocked()
	return st
}
