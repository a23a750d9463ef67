// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline in an akita ticking component so that a simulation
// engine drives one pipeline cycle per clock edge.
package core

import (
	"context"

	"github.com/sarchlab/akita/v4/sim"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/rv32sim/timing/pipeline"
)

// DefaultFreq is the clock frequency used when none is configured.
const DefaultFreq = 1 * sim.GHz

// Stats holds performance statistics for the core.
type Stats struct {
	pipeline.Statistics

	// Time is the simulated time at the last cycle.
	Time sim.VTimeInSec
}

// Core represents a cycle-accurate CPU core model.
type Core struct {
	*sim.TickingComponent

	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	engine    sim.Engine
	ctx       context.Context
	maxCycles uint64
	err       error
}

// Builder creates cores.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	maxCycles uint64
}

// MakeBuilder returns a builder with a serial engine and the default
// frequency.
func MakeBuilder() Builder {
	return Builder{freq: DefaultFreq}
}

// WithEngine sets the engine that schedules the core's ticks.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the clock frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithMaxCycles stops the core with pipeline.ErrCycleLimit after the given
// number of cycles. 0 means no limit.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

// Build creates a core named name around p.
func (b Builder) Build(name string, p *pipeline.Pipeline) *Core {
	engine := b.engine
	if engine == nil {
		engine = sim.NewSerialEngine()
	}

	c := &Core{
		Pipeline:  p,
		engine:    engine,
		ctx:       context.Background(),
		maxCycles: b.maxCycles,
	}
	c.TickingComponent = sim.NewTickingComponent(name, engine, b.freq, c)

	return c
}

// Engine returns the engine driving the core.
func (c *Core) Engine() sim.Engine {
	return c.engine
}

// Tick advances the pipeline by one cycle. It returns false once the core
// has nothing more to do, which stops further ticks from being scheduled.
func (c *Core) Tick() bool {
	if c.Pipeline.Halted() || c.err != nil {
		return false
	}

	if err := c.ctx.Err(); err != nil {
		c.err = errors.Wrap(err, "cycle %d", c.Pipeline.Stats().Cycles)
		return false
	}

	if c.maxCycles > 0 && c.Pipeline.Stats().Cycles >= c.maxCycles {
		c.err = errors.Wrap(pipeline.ErrCycleLimit, "%d cycles", c.Pipeline.Stats().Cycles)
		return false
	}

	c.Pipeline.Tick()

	return !c.Pipeline.Halted()
}

// Run schedules the first tick and runs the engine until the pipeline
// halts, ctx is done or the cycle limit is hit.
func (c *Core) Run(ctx context.Context) error {
	c.ctx = ctx
	defer func() { c.ctx = context.Background() }()

	if c.Pipeline.Halted() {
		return c.Pipeline.Err()
	}

	c.TickLater()

	if err := c.engine.Run(); err != nil {
		return errors.Wrap(err, "engine")
	}

	tlog.SpanFromContext(ctx).Printw("core stopped",
		"core", c.Name(), "cycles", c.Pipeline.Stats().Cycles, "time", c.engine.CurrentTime())

	if c.err != nil {
		return c.err
	}

	return c.Pipeline.Err()
}

// Halted returns true once the pipeline has halted.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return Stats{
		Statistics: c.Pipeline.Stats(),
		Time:       c.engine.CurrentTime(),
	}
}

// Reset clears the pipeline and any stop reason.
func (c *Core) Reset() {
	c.Pipeline.Reset()
	c.err = nil
}
