package pipeline

import (
	"tlog.app/go/errors"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// ControlWord is the set of per-instruction enable signals produced at
// decode. It is copied from latch to latch and never modified.
type ControlWord struct {
	RegRead  bool           // Source registers are read in execute
	RegWrite bool           // The destination register is written back
	ALUSrc   bool           // The second ALU operand is the immediate
	ALUOp    emu.ALUOpClass // ALU operation class
	Branch   bool           // Conditional branch
	Jump     bool           // Unconditional jump
	MemRead  bool           // Load
	MemWrite bool           // Store
	MemToReg bool           // Write back the loaded value instead of the ALU result
}

var controlTable = map[uint8]ControlWord{
	insts.OpcodeR:     {RegRead: true, RegWrite: true, ALUOp: emu.ALUOpR},
	insts.OpcodeI:     {RegRead: true, RegWrite: true, ALUSrc: true, ALUOp: emu.ALUOpI},
	insts.OpcodeL:     {RegRead: true, RegWrite: true, ALUSrc: true, ALUOp: emu.ALUOpMem, MemRead: true, MemToReg: true},
	insts.OpcodeS:     {RegRead: true, ALUSrc: true, ALUOp: emu.ALUOpMem, MemWrite: true},
	insts.OpcodeB:     {RegRead: true, ALUOp: emu.ALUOpBranch, Branch: true},
	insts.OpcodeU:     {RegWrite: true, ALUSrc: true, ALUOp: emu.ALUOpMem},
	insts.OpcodeJ:     {RegWrite: true, ALUOp: emu.ALUOpMem, Jump: true},
	insts.OpcodeAUIPC: {RegWrite: true, ALUSrc: true, ALUOp: emu.ALUOpMem},
	insts.OpcodeJALR:  {RegRead: true, RegWrite: true, ALUSrc: true, ALUOp: emu.ALUOpI, Jump: true},
}

// ControlUnit maps opcodes to control words.
type ControlUnit struct{}

// NewControlUnit creates a new control unit.
func NewControlUnit() *ControlUnit {
	return &ControlUnit{}
}

// Decode returns the control word for a 7-bit opcode.
func (c *ControlUnit) Decode(opcode uint8) (ControlWord, error) {
	cw, ok := controlTable[opcode]
	if !ok {
		return ControlWord{}, errors.Wrap(insts.ErrUnknownOpcode, "opcode %07b", opcode)
	}

	return cw, nil
}
