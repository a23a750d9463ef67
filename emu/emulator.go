package emu

import (
	"tlog.app/go/errors"

	"github.com/sarchlab/rv32sim/insts"
)

// ErrInstructionLimit is returned by Run when the instruction limit is hit.
var ErrInstructionLimit = errors.New("instruction limit reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true once the PC has left the program.
	Halted bool

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RV32I instructions functionally, one instruction per
// step, without modelling the pipeline.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	imem    *InstructionMemory
	decoder *insts.Decoder
	lsu     *LoadStoreUnit

	pc uint32

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithRegFile sets the register file, including its initial values.
func WithRegFile(rf *RegFile) EmulatorOption {
	return func(e *Emulator) {
		e.regFile = rf
	}
}

// WithMemory sets the data memory.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = m
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a functional emulator for the given program.
func NewEmulator(imem *InstructionMemory, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		imem:    imem,
		decoder: insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory(DefaultMemoryWords)
	}

	e.lsu = NewLoadStoreUnit(e.memory)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's data memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// PC returns the current program counter.
func (e *Emulator) PC() uint32 {
	return e.pc
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Halted reports whether the PC is past the last instruction.
func (e *Emulator) Halted() bool {
	return int(e.pc/4) >= e.imem.Len()
}

// Step executes one instruction.
func (e *Emulator) Step() StepResult {
	if e.Halted() {
		return StepResult{Halted: true}
	}

	word, err := e.imem.Fetch(int(e.pc / 4))
	if err != nil {
		return StepResult{Err: err}
	}

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return StepResult{Err: errors.Wrap(err, "pc %#x", e.pc)}
	}

	next, err := e.execute(inst)
	if err != nil {
		return StepResult{Err: errors.Wrap(err, "pc %#x: %v", e.pc, inst)}
	}

	e.pc = next
	e.instructionCount++

	return StepResult{Halted: e.Halted()}
}

// Run executes until the program halts, an error occurs or the instruction
// limit is reached.
func (e *Emulator) Run() error {
	for {
		if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
			return errors.Wrap(ErrInstructionLimit, "%d instructions", e.instructionCount)
		}

		r := e.Step()
		if r.Err != nil {
			return r.Err
		}

		if r.Halted {
			return nil
		}
	}
}

// execute performs inst and returns the next PC.
func (e *Emulator) execute(inst *insts.Instruction) (uint32, error) {
	rf := e.regFile
	pc := e.pc
	next := pc + 4
	rs1 := rf.ReadReg(inst.Rs1)
	rs2 := rf.ReadReg(inst.Rs2)

	alu := func(class ALUOpClass, b int32) error {
		v, err := Execute(SelectOperation(class, inst.Funct3, inst.Funct7), rs1, b)
		if err != nil {
			return err
		}

		rf.WriteReg(inst.Rd, v)

		return nil
	}

	switch inst.Format {
	case insts.FormatR:
		return next, alu(ALUOpR, rs2)

	case insts.FormatIS:
		return next, alu(ALUOpR, inst.Imm)

	case insts.FormatI:
		if inst.Op != insts.OpJALR {
			return next, alu(ALUOpI, inst.Imm)
		}

		t, err := JumpTarget((rs1+inst.Imm)&^1, 0)
		if err != nil {
			return 0, err
		}

		rf.WriteReg(inst.Rd, int32(next))

		return t, nil

	case insts.FormatL:
		v, err := e.lsu.Load(inst.Funct3, rs1+inst.Imm)
		if err != nil {
			return 0, err
		}

		rf.WriteReg(inst.Rd, v)

		return next, nil

	case insts.FormatS:
		return next, e.lsu.Store(inst.Funct3, rs1+inst.Imm, rs2)

	case insts.FormatB:
		taken, err := BranchTaken(inst.Funct3, rs1, rs2)
		if err != nil || !taken {
			return next, err
		}

		return JumpTarget(int32(pc), inst.Imm)

	case insts.FormatU:
		v := inst.Imm << 12
		if inst.Op == insts.OpAUIPC {
			v += int32(pc)
		}

		rf.WriteReg(inst.Rd, v)

		return next, nil

	case insts.FormatJ:
		t, err := JumpTarget(int32(pc), inst.Imm)
		if err != nil {
			return 0, err
		}

		rf.WriteReg(inst.Rd, int32(next))

		return t, nil
	}

	return 0, errors.Wrap(insts.ErrUnknownOpcode, "format %v", inst.Format)
}
