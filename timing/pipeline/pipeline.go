package pipeline

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// Pipeline errors.
var (
	ErrCycleLimit = errors.New("cycle limit reached")
	ErrDeadlock   = errors.New("pipeline deadlock")
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// Stalls is the number of cycles fetch was held by a hazard flag.
	Stalls uint64
	// DataHazards is the number of RAW data hazards detected.
	DataHazards uint64
	// ControlHazards is the number of branches and jumps decoded.
	ControlHazards uint64
	// Bubbles counts bubble cycles by reason.
	Bubbles [NumBubbleReasons]uint64
	// Redirects is the number of taken branches and jumps.
	Redirects uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// TotalBubbles returns the number of bubble cycles of any reason.
func (s Statistics) TotalBubbles() uint64 {
	var n uint64
	for _, b := range s.Bubbles {
		n += b
	}
	return n
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithMaxCycles bounds Run. A value of 0 means no limit.
func WithMaxCycles(max uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = max
	}
}

// WithObserver registers a function called with a snapshot after every
// cycle.
func WithObserver(fn func(Snapshot)) PipelineOption {
	return func(p *Pipeline) {
		p.observers = append(p.observers, fn)
	}
}

// WithHardwiredZero makes x0 read as zero and never lock.
func WithHardwiredZero(on bool) PipelineOption {
	return func(p *Pipeline) {
		p.hardwireZero = on
	}
}

// Pipeline implements a 5-stage pipelined RV32I CPU model.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MO) -> Writeback (WB)
//
// Data hazards are resolved by stalling, never by forwarding, and control
// hazards by holding fetch until the branch or jump has executed.
type Pipeline struct {
	// Pipeline registers
	ifid IFIDRegister
	idex IDEXRegister
	exmo EXMORegister
	mowb MOWBRegister

	// Pipeline stages
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Hazard detection
	hazardUnit *HazardUnit

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
	imem    *emu.InstructionMemory

	// Program counter
	pc          uint32
	pcAvailable bool

	// Statistics
	stats Statistics

	// Execution state
	halted       bool
	err          error
	retired      *Retirement
	maxCycles    uint64
	hardwireZero bool
	observers    []func(Snapshot)
}

// NewPipeline creates a pipeline for a program. A nil regFile or memory is
// replaced by a zeroed one.
func NewPipeline(
	imem *emu.InstructionMemory,
	regFile *emu.RegFile,
	memory *emu.Memory,
	opts ...PipelineOption,
) *Pipeline {
	if regFile == nil {
		regFile = &emu.RegFile{}
	}

	if memory == nil {
		memory = emu.NewMemory(emu.DefaultMemoryWords)
	}

	p := &Pipeline{
		regFile: regFile,
		memory:  memory,
		imem:    imem,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.hardwireZero {
		regFile.HardwireZero = true
	}

	p.fetchStage = NewFetchStage(imem)
	p.decodeStage = NewDecodeStage()
	p.executeStage = NewExecuteStage(regFile)
	p.memoryStage = NewMemoryStage(memory)
	p.writebackStage = NewWritebackStage(regFile)
	p.hazardUnit = NewHazardUnit(regFile.HardwireZero)

	p.Reset()

	return p
}

// PC returns the address of the next instruction to fetch.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// RegFile returns the register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Memory returns the data memory.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// HazardUnit returns the hazard unit.
func (p *Pipeline) HazardUnit() *HazardUnit {
	return p.hazardUnit
}

// GetIFID returns the IF/ID pipeline register.
func (p *Pipeline) GetIFID() *IFIDRegister {
	return &p.ifid
}

// GetIDEX returns the ID/EX pipeline register.
func (p *Pipeline) GetIDEX() *IDEXRegister {
	return &p.idex
}

// GetEXMO returns the EX/MO pipeline register.
func (p *Pipeline) GetEXMO() *EXMORegister {
	return &p.exmo
}

// GetMOWB returns the MO/WB pipeline register.
func (p *Pipeline) GetMOWB() *MOWBRegister {
	return &p.mowb
}

// Stats returns the pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Halted returns true once the program has drained or a fatal error
// occurred.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Err returns the fatal error that stopped the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// Flags returns the stage activity flags.
func (p *Pipeline) Flags() StageFlags {
	return StageFlags{
		PCAvailable: p.pcAvailable,
		Fetched:     p.ifid.Valid,
		Decoded:     p.idex.Valid,
		Executed:    p.exmo.Valid,
		MemoryDone:  p.mowb.Valid,
	}
}

// Run ticks until the pipeline halts, the context is done or the cycle
// limit is reached. It returns the fatal error, if any.
func (p *Pipeline) Run(ctx context.Context) error {
	for !p.halted {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "cycle %d", p.stats.Cycles)
		}

		if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles {
			return errors.Wrap(ErrCycleLimit, "%d cycles", p.stats.Cycles)
		}

		p.Tick()
	}

	return p.err
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick executes one pipeline cycle. Stages run in reverse order so each
// stage consumes the latch its predecessor filled in the previous cycle.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.stats.Cycles++
	p.retired = nil

	err := p.tick()

	switch {
	case err != nil:
		p.fail(err)
	case p.drained():
		p.halted = true
		tlog.V("pipeline").Printw("halted", "cycles", p.stats.Cycles, "instructions", p.stats.Instructions)
	case p.deadlocked():
		p.fail(errors.Wrap(ErrDeadlock, "pc %#x", p.pc))
	}

	if len(p.observers) != 0 {
		s := p.Snapshot()
		for _, fn := range p.observers {
			fn(s)
		}
	}
}

func (p *Pipeline) tick() error {
	p.doWriteback()

	if err := p.doMemory(); err != nil {
		return err
	}

	if err := p.doExecute(); err != nil {
		return err
	}

	if err := p.doDecode(); err != nil {
		return err
	}

	p.doFetch()

	return nil
}

func (p *Pipeline) fail(err error) {
	p.err = errors.Wrap(err, "cycle %d", p.stats.Cycles)
	p.halted = true

	tlog.V("pipeline").Printw("fatal", "cycle", p.stats.Cycles, "err", err)
}

func (p *Pipeline) drained() bool {
	return !p.pcAvailable && !p.ifid.Valid && !p.idex.Valid && !p.exmo.Valid && !p.mowb.Valid
}

// deadlocked reports a stall flag with nothing left in flight to clear it.
func (p *Pipeline) deadlocked() bool {
	if p.hazardUnit.DataStall() && !p.exmo.Valid && !p.mowb.Valid {
		return true
	}

	return p.hazardUnit.ControlPending() && !p.idex.Valid
}

func (p *Pipeline) doWriteback() {
	if !p.mowb.Valid {
		return
	}

	value, wrote := p.writebackStage.Writeback(&p.mowb)
	rd := p.mowb.Inst.Rd

	if wrote && p.hazardUnit.Release(rd) {
		tlog.V("pipeline").Printw("lock released", "cycle", p.stats.Cycles, "reg", rd)
	}

	p.stats.Instructions++
	p.retired = &Retirement{
		Cycle: p.stats.Cycles,
		PC:    p.mowb.PC,
		Inst:  p.mowb.Inst,
		Rd:    rd,
		Value: value,
		Wrote: wrote,
	}

	p.mowb.Clear()
}

func (p *Pipeline) doMemory() error {
	if !p.exmo.Valid {
		return nil
	}

	mowb, err := p.memoryStage.Access(&p.exmo)
	if err != nil {
		return err
	}

	p.mowb = mowb
	p.exmo.Clear()

	return nil
}

func (p *Pipeline) doExecute() error {
	if !p.idex.Valid || p.hazardUnit.DataStall() || p.hazardUnit.BubblePending() {
		return nil
	}

	res, err := p.executeStage.Execute(&p.idex)
	if err != nil {
		return err
	}

	p.exmo = res.EXMORegister

	if p.idex.Control.Branch || p.idex.Control.Jump {
		p.hazardUnit.Resolve()
	}

	if res.Redirect {
		p.pc = res.Target
		p.pcAvailable = int(p.pc/4) < p.imem.Len()
		p.stats.Redirects++

		tlog.V("pipeline").Printw("redirect", "cycle", p.stats.Cycles, "from", p.idex.PC, "to", p.pc)
	}

	p.idex.Clear()

	return nil
}

func (p *Pipeline) doDecode() error {
	if reason, ok := p.hazardUnit.ConsumeBubble(); ok {
		p.stats.Bubbles[reason]++
		return nil
	}

	if !p.ifid.Valid || p.hazardUnit.Stalled() || p.idex.Valid {
		return nil
	}

	idex, err := p.decodeStage.Decode(&p.ifid)
	if err != nil {
		return err
	}

	ahead := InFlight{Valid: p.exmo.Valid}
	if ahead.Valid {
		ahead.Rd = p.exmo.Inst.Rd
		ahead.RegWrite = p.exmo.Control.RegWrite
	}

	h := p.hazardUnit.Check(idex.Inst, idex.Control, ahead)
	if h.DataHazard {
		p.stats.DataHazards++
		tlog.V("pipeline").Printw("data hazard", "cycle", p.stats.Cycles, "pc", idex.PC, "reg", h.Reg)
	}

	if h.ControlHazard {
		p.stats.ControlHazards++
	}

	p.idex = idex
	p.ifid.Clear()

	return nil
}

func (p *Pipeline) doFetch() {
	if !p.pcAvailable {
		return
	}

	if p.hazardUnit.Stalled() {
		p.stats.Stalls++
		return
	}

	if p.ifid.Valid {
		return
	}

	p.ifid = p.fetchStage.Fetch(p.pc)
	p.pc += 4

	if int(p.pc/4) >= p.imem.Len() {
		p.pcAvailable = false
	}
}

// Reset clears the pipeline state back to the start of the program. The
// register file and data memory are left untouched.
func (p *Pipeline) Reset() {
	p.ifid.Clear()
	p.idex.Clear()
	p.exmo.Clear()
	p.mowb.Clear()
	p.hazardUnit.Reset()

	p.pc = 0
	p.pcAvailable = p.imem.Len() > 0
	p.stats = Statistics{}
	p.halted = !p.pcAvailable
	p.err = nil
	p.retired = nil
}

// Retirement describes the instruction that left writeback in a cycle.
type Retirement struct {
	Cycle uint64
	PC    uint32
	Inst  *insts.Instruction
	Rd    uint8
	Value int32
	Wrote bool
}
