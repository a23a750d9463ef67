// Package pipeline provides the 5-stage pipeline implementation for timing simulation.
package pipeline

import "github.com/sarchlab/rv32sim/insts"

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32

	// Err is a fetch fault. It becomes fatal when the entry is decoded.
	Err error
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Control is the control word produced at decode.
	Control ControlWord

	// Target is the PC-relative branch or jump target computed at decode.
	// TargetErr is set when that target is negative or misaligned; it is
	// only reported if the transfer is taken.
	Target    uint32
	TargetErr error
}

// Clear resets the ID/EX register to empty state.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// EXMORegister holds state between Execute and Memory stages.
type EXMORegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Control is the control word produced at decode.
	Control ControlWord

	// ALUResult is the data address for loads and stores, the link address
	// for jumps and the result for everything else.
	ALUResult int32

	// StoreValue is the rs2 value for stores.
	StoreValue int32

	// Taken is set for taken branches and jumps.
	Taken bool
}

// Clear resets the EX/MO register to empty state.
func (r *EXMORegister) Clear() {
	*r = EXMORegister{}
}

// MOWBRegister holds state between Memory and Writeback stages.
type MOWBRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// Control is the control word produced at decode.
	Control ControlWord

	// ALUResult is carried from execute.
	ALUResult int32

	// MemData is the loaded value for loads.
	MemData int32
}

// Clear resets the MO/WB register to empty state.
func (r *MOWBRegister) Clear() {
	*r = MOWBRegister{}
}
