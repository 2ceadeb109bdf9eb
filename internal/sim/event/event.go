package event

import "creepair.dev/internal/sim/voxel"

type Kind int

const (
	KindExplosion Kind = iota + 1
	KindNotifyNeighbor
	KindDecay
	KindDropItem
)

func (k Kind) String() string {
	switch k {
	case KindExplosion:
		return "EXPLOSION"
	case KindNotifyNeighbor:
		return "NOTIFY_NEIGHBOR"
	case KindDecay:
		return "DECAY"
	case KindDropItem:
		return "DROP_ITEM"
	default:
		return "UNKNOWN"
	}
}

// Agent identifies an entity that can cause events. The zero Agent means "no agent".
type Agent struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

func (a Agent) IsZero() bool { return a == Agent{} }

func (a Agent) String() string {
	if a.IsZero() {
		return "<none>"
	}
	return a.Kind + ":" + a.ID
}

// Cause carries the causal references of an event explicitly. The host fills in
// whatever it knows; listeners never have to infer it.
type Cause struct {
	// Agent is the direct source of the event.
	Agent Agent
	// Parent is the agent whose action led to the direct source (e.g. the
	// creeper behind a neighbour update).
	Parent Agent
	// Block is the block snapshot that caused the event, if any.
	Block *voxel.Snapshot
}

// Transaction is one block changed by an explosion.
type Transaction struct {
	Original voxel.Snapshot
	Final    voxel.Snapshot
}

type ItemDrop struct {
	Item  string         `json:"item"`
	Count int            `json:"count"`
	Loc   voxel.Location `json:"loc"`
}

type Event interface {
	Kind() Kind
	Cancelled() bool
	SetCancelled(bool)
}

type cancellable struct{ cancelled bool }

func (c *cancellable) Cancelled() bool     { return c.cancelled }
func (c *cancellable) SetCancelled(v bool) { c.cancelled = v }

// Explosion fires after the blocks in Txns were selected for destruction and
// before they are written.
type Explosion struct {
	cancellable
	Agent  Agent
	Center voxel.Location
	Radius int
	Txns   []Transaction
}

func (*Explosion) Kind() Kind { return KindExplosion }

// NotifyNeighbor fires when Block changed and its neighbours are about to react.
type NotifyNeighbor struct {
	cancellable
	Block     voxel.Snapshot
	Cause     Cause
	Neighbors []voxel.Location
}

func (*NotifyNeighbor) Kind() Kind { return KindNotifyNeighbor }

// Decay fires before an unsupported decaying block (leaves) is removed.
type Decay struct {
	cancellable
	Block voxel.Snapshot
}

func (*Decay) Kind() Kind { return KindDecay }

// DropItem fires before items produced by destroying Cause.Block are spawned.
type DropItem struct {
	cancellable
	Cause Cause
	Items []ItemDrop
}

func (*DropItem) Kind() Kind { return KindDropItem }
