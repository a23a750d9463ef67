package pipeline

import (
	"tlog.app/go/errors"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// FetchStage handles instruction fetch from instruction memory.
type FetchStage struct {
	imem *emu.InstructionMemory
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(imem *emu.InstructionMemory) *FetchStage {
	return &FetchStage{imem: imem}
}

// Fetch reads the instruction at the given PC.
func (s *FetchStage) Fetch(pc uint32) IFIDRegister {
	word, err := s.imem.Fetch(int(pc / 4))

	return IFIDRegister{
		Valid:           true,
		PC:              pc,
		InstructionWord: word,
		Err:             err,
	}
}

// DecodeStage handles instruction decode and control generation.
type DecodeStage struct {
	decoder *insts.Decoder
	control *ControlUnit
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage() *DecodeStage {
	return &DecodeStage{
		decoder: insts.NewDecoder(),
		control: NewControlUnit(),
	}
}

// Decode decodes the fetched word. Fetch faults and unknown encodings are
// returned as errors.
func (s *DecodeStage) Decode(ifid *IFIDRegister) (IDEXRegister, error) {
	if ifid.Err != nil {
		return IDEXRegister{}, errors.Wrap(ifid.Err, "pc %#x", ifid.PC)
	}

	inst, err := s.decoder.Decode(ifid.InstructionWord)
	if err != nil {
		return IDEXRegister{}, errors.Wrap(err, "pc %#x: word %08x", ifid.PC, ifid.InstructionWord)
	}

	cw, err := s.control.Decode(inst.Opcode)
	if err != nil {
		return IDEXRegister{}, errors.Wrap(err, "pc %#x", ifid.PC)
	}

	idex := IDEXRegister{
		Valid:   true,
		PC:      ifid.PC,
		Inst:    inst,
		Control: cw,
	}

	if inst.Format == insts.FormatB || inst.Format == insts.FormatJ {
		idex.Target, idex.TargetErr = emu.JumpTarget(int32(ifid.PC), inst.Imm)
	}

	return idex, nil
}

// ExecuteStage handles ALU operations and branch resolution.
type ExecuteStage struct {
	regFile *emu.RegFile
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage(regFile *emu.RegFile) *ExecuteStage {
	return &ExecuteStage{regFile: regFile}
}

// ExecuteResult holds the result of the execute stage.
type ExecuteResult struct {
	EXMORegister

	// Redirect is set when the PC must move to Target.
	Redirect bool
	Target   uint32
}

// Execute reads the source registers and computes the ALU result and any
// control transfer.
func (s *ExecuteStage) Execute(idex *IDEXRegister) (ExecuteResult, error) {
	inst := idex.Inst
	ctrl := idex.Control

	var a, b int32
	if ctrl.RegRead {
		a = s.regFile.ReadReg(inst.Rs1)
		b = s.regFile.ReadReg(inst.Rs2)
	}

	res := ExecuteResult{EXMORegister: EXMORegister{
		Valid:      true,
		PC:         idex.PC,
		Inst:       inst,
		Control:    ctrl,
		StoreValue: b,
	}}

	class := ctrl.ALUOp
	if inst.Format == insts.FormatIS {
		class = emu.ALUOpR
	}

	if ctrl.ALUSrc {
		switch inst.Format {
		case insts.FormatU:
			b = inst.Imm << 12
			if inst.Op == insts.OpAUIPC {
				a = int32(idex.PC)
			}
		default:
			b = inst.Imm
		}
	}

	op := emu.SelectOperation(class, inst.Funct3, inst.Funct7)

	v, err := emu.Execute(op, a, b)
	if err != nil {
		return res, errors.Wrap(err, "pc %#x: %v", idex.PC, inst)
	}

	res.ALUResult = v
	link := int32(idex.PC + 4)

	switch {
	case ctrl.Branch:
		taken, err := emu.BranchTaken(inst.Funct3, a, b)
		if err != nil {
			return res, errors.Wrap(err, "pc %#x", idex.PC)
		}

		if taken {
			if idex.TargetErr != nil {
				return res, errors.Wrap(idex.TargetErr, "pc %#x", idex.PC)
			}

			res.Taken, res.Redirect, res.Target = true, true, idex.Target
		}

	case ctrl.Jump && inst.Op == insts.OpJALR:
		t, err := emu.JumpTarget(v&^1, 0)
		if err != nil {
			return res, errors.Wrap(err, "pc %#x", idex.PC)
		}

		res.ALUResult = link
		res.Taken, res.Redirect, res.Target = true, true, t

	case ctrl.Jump:
		if idex.TargetErr != nil {
			return res, errors.Wrap(idex.TargetErr, "pc %#x", idex.PC)
		}

		res.ALUResult = link
		res.Taken, res.Redirect, res.Target = true, true, idex.Target
	}

	return res, nil
}

// MemoryStage handles data memory access.
type MemoryStage struct {
	lsu *emu.LoadStoreUnit
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{lsu: emu.NewLoadStoreUnit(memory)}
}

// Access performs the load or store of the instruction, if any, using the
// ALU result as the word address.
func (s *MemoryStage) Access(exmo *EXMORegister) (MOWBRegister, error) {
	mowb := MOWBRegister{
		Valid:     true,
		PC:        exmo.PC,
		Inst:      exmo.Inst,
		Control:   exmo.Control,
		ALUResult: exmo.ALUResult,
	}

	var err error

	switch {
	case exmo.Control.MemRead:
		mowb.MemData, err = s.lsu.Load(exmo.Inst.Funct3, exmo.ALUResult)
	case exmo.Control.MemWrite:
		err = s.lsu.Store(exmo.Inst.Funct3, exmo.ALUResult, exmo.StoreValue)
	}

	if err != nil {
		return mowb, errors.Wrap(err, "pc %#x", exmo.PC)
	}

	return mowb, nil
}

// WritebackStage handles register writeback.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback writes the result register. It returns the written value and
// whether a write happened.
func (s *WritebackStage) Writeback(mowb *MOWBRegister) (int32, bool) {
	if !mowb.Control.RegWrite {
		return 0, false
	}

	v := mowb.ALUResult
	if mowb.Control.MemToReg {
		v = mowb.MemData
	}

	s.regFile.WriteReg(mowb.Inst.Rd, v)

	return v, true
}
