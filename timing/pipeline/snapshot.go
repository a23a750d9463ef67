package pipeline

import "github.com/sarchlab/rv32sim/emu"

// StageFlags reports which stages hold work. A stage flag is set while the
// latch that stage produced is occupied.
type StageFlags struct {
	PCAvailable bool // Fetch may still read instructions
	Fetched     bool // IF/ID is occupied
	Decoded     bool // ID/EX is occupied
	Executed    bool // EX/MO is occupied
	MemoryDone  bool // MO/WB is occupied
}

// Any reports whether any flag is set.
func (f StageFlags) Any() bool {
	return f.PCAvailable || f.Fetched || f.Decoded || f.Executed || f.MemoryDone
}

// Snapshot is the observable state of the pipeline after a cycle.
type Snapshot struct {
	Cycle     uint64
	PC        uint32
	Registers [emu.NumRegs]int32
	Memory    []int32
	Flags     StageFlags

	DataStall      bool
	ControlPending bool
	Locks          [emu.NumRegs]bool

	// Retired is the instruction that completed writeback this cycle.
	Retired *Retirement

	Stats  Statistics
	Halted bool
	Err    error
}

// Snapshot captures the current architectural and pipeline state.
func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		Cycle:          p.stats.Cycles,
		PC:             p.pc,
		Registers:      p.regFile.Snapshot(),
		Memory:         p.memory.Snapshot(),
		Flags:          p.Flags(),
		DataStall:      p.hazardUnit.DataStall(),
		ControlPending: p.hazardUnit.ControlPending(),
		Locks:          p.hazardUnit.Locks(),
		Retired:        p.retired,
		Stats:          p.stats,
		Halted:         p.halted,
		Err:            p.err,
	}
}
