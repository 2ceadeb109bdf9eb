package world

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var ErrStopped = errors.New("world stopped")

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case fn := <-w.cmds:
			fn()
		case <-ticker.C:
			w.step()
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

const (
	cmdPending int32 = iota
	cmdRunning
	cmdAbandoned
)

// Do runs fn on the world goroutine and waits for it to finish. A nil return
// means fn ran. Any error means fn did not run and never will, even if it was
// already queued when ctx ended or the world stopped.
func (w *World) Do(ctx context.Context, fn func()) error {
	var state atomic.Int32
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		if state.CompareAndSwap(cmdPending, cmdRunning) {
			fn()
		}
	}
	select {
	case w.cmds <- wrapped:
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	var err error
	select {
	case <-done:
		return nil
	case <-w.stop:
		err = ErrStopped
	case <-ctx.Done():
		err = ctx.Err()
	}
	if state.CompareAndSwap(cmdPending, cmdAbandoned) {
		return err
	}
	<-done
	return nil
}

// StepOnce advances the world by a single tick. Used by tests and tools that
// drive the world without Run.
func (w *World) StepOnce() uint64 {
	w.step()
	return w.CurrentTick()
}

func (w *World) step() {
	now := w.tick.Add(1)
	w.stepCreepers()
	w.stepDecay(now)
	w.sched.Advance()
}
