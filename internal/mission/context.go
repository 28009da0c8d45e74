// Package mission tracks the run currently being simulated so logging and
// monitoring can describe it.
package mission

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/OCAP2/missionsim/pkg/core"
)

// Context holds the current run and the last completed tick
type Context struct {
	mu       sync.RWMutex
	run      *core.Run
	lastTick atomic.Int64
}

// NewContext creates a Context with no run loaded
func NewContext() *Context {
	c := &Context{run: &core.Run{Name: "No run loaded"}}
	c.lastTick.Store(-1)
	return c
}

// GetRun returns the current run
func (c *Context) GetRun() *core.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run
}

// SetRun replaces the current run and clears the tick counter
func (c *Context) SetRun(run *core.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = run
	c.lastTick.Store(-1)
}

// SetTick records the last completed tick
func (c *Context) SetTick(t int) {
	c.lastTick.Store(int64(t))
}

// LastTick returns the last completed tick; ok is false before the first.
func (c *Context) LastTick() (tick int, ok bool) {
	v := c.lastTick.Load()
	return int(v), v >= 0
}

// Progress is the completed share of the run window, 0..1.
func (c *Context) Progress() float64 {
	run := c.GetRun()
	tick, ok := c.LastTick()
	if !ok || run == nil || run.Ticks() == 0 {
		return 0
	}
	done := float64(tick-run.StartSec+1) / float64(run.Ticks())
	if done > 1 {
		return 1
	}
	if done < 0 {
		return 0
	}
	return done
}

// Attrs describes the run for log records; usable as a logging.ContextProvider.
func (c *Context) Attrs() []slog.Attr {
	run := c.GetRun()
	attrs := []slog.Attr{slog.String("run", run.Name)}
	if tick, ok := c.LastTick(); ok {
		attrs = append(attrs, slog.Int("tick", tick))
	}
	return attrs
}
