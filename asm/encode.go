package asm

import (
	"strings"

	"tlog.app/go/errors"

	"github.com/sarchlab/rv32sim/insts"
)

// Word-offset limits for branch and jump operands.
const (
	minBranchWords = -1 << 10
	maxBranchWords = 1<<10 - 1
	minJumpWords   = -1 << 18
	maxJumpWords   = 1<<18 - 1
)

// operands holds the parsed fields of one instruction.
type operands struct {
	rd, rs1, rs2 uint8
	imm          int64
}

func (a *Assembler) encode(l line) (uint32, error) {
	s, err := insts.Lookup(l.op)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidMnemonic, "%q", l.op)
	}

	var o operands

	switch s.Format {
	case insts.FormatR:
		err = parseRegs(l, &o.rd, &o.rs1, &o.rs2)
	case insts.FormatI:
		err = a.parseI(l, s, &o)
	case insts.FormatIS:
		err = parseRegImm(l, &o.rd, &o.rs1, &o.imm)
	case insts.FormatL:
		err = parseMem(l, &o.rd, &o)
	case insts.FormatS:
		err = parseMem(l, &o.rs2, &o)
	case insts.FormatB:
		err = a.parseBranch(l, &o)
	case insts.FormatU:
		err = a.parseUpper(l, &o)
	case insts.FormatJ:
		err = a.parseJump(l, &o)
	default:
		err = errors.Wrap(ErrInvalidMnemonic, "%q has no format", l.op)
	}

	if err != nil {
		return 0, errors.Wrap(err, "%s", strings.ToLower(l.op))
	}

	if !insts.FitsSigned(o.imm, 32) {
		return 0, errors.Wrap(insts.ErrImmediateRange, "%s immediate %d", strings.ToLower(l.op), o.imm)
	}

	return insts.Encode(s, o.rd, o.rs1, o.rs2, int32(o.imm))
}

func wantArgs(l line, n int) error {
	if len(l.args) != n {
		return errors.Wrap(ErrInvalidOperand, "expected %d operands, got %d", n, len(l.args))
	}

	return nil
}

func parseRegs(l line, regs ...*uint8) (err error) {
	if err = wantArgs(l, len(regs)); err != nil {
		return err
	}

	for i, r := range regs {
		if *r, err = parseRegister(l.args[i]); err != nil {
			return err
		}
	}

	return nil
}

func parseRegImm(l line, rd, rs1 *uint8, imm *int64) (err error) {
	if err = wantArgs(l, 3); err != nil {
		return err
	}

	if *rd, err = parseRegister(l.args[0]); err != nil {
		return err
	}

	if *rs1, err = parseRegister(l.args[1]); err != nil {
		return err
	}

	*imm, err = parseImmediate(l.args[2])

	return err
}

func parseMem(l line, reg *uint8, o *operands) (err error) {
	if err = wantArgs(l, 2); err != nil {
		return err
	}

	if *reg, err = parseRegister(l.args[0]); err != nil {
		return err
	}

	o.imm, o.rs1, err = parseMemory(l.args[1])

	return err
}

// parseI accepts "rd, rs1, imm". JALR also takes "rd, imm(rs1)" and the
// single-register "jalr rs1" shorthand.
func (a *Assembler) parseI(l line, s insts.Spec, o *operands) (err error) {
	if s.Op != insts.OpJALR {
		return parseRegImm(l, &o.rd, &o.rs1, &o.imm)
	}

	switch len(l.args) {
	case 1:
		o.rd = 1
		o.rs1, err = parseRegister(l.args[0])

		return err
	case 2:
		return parseMem(l, &o.rd, o)
	default:
		return parseRegImm(l, &o.rd, &o.rs1, &o.imm)
	}
}

func (a *Assembler) parseBranch(l line, o *operands) (err error) {
	if err = wantArgs(l, 3); err != nil {
		return err
	}

	if o.rs1, err = parseRegister(l.args[0]); err != nil {
		return err
	}

	if o.rs2, err = parseRegister(l.args[1]); err != nil {
		return err
	}

	o.imm, err = a.target(l.args[2], minBranchWords, maxBranchWords)

	return err
}

func (a *Assembler) parseUpper(l line, o *operands) (err error) {
	if err = wantArgs(l, 2); err != nil {
		return err
	}

	if o.rd, err = parseRegister(l.args[0]); err != nil {
		return err
	}

	if o.imm, err = parseImmediate(l.args[1]); err != nil {
		return err
	}

	if o.imm < -(1<<19) || o.imm > 1<<20-1 {
		return errors.Wrap(insts.ErrImmediateRange, "upper immediate %d", o.imm)
	}

	return nil
}

// parseJump accepts "rd, target" and the "jal target" shorthand linking
// through ra.
func (a *Assembler) parseJump(l line, o *operands) (err error) {
	target := ""

	switch len(l.args) {
	case 1:
		o.rd = 1
		target = l.args[0]
	case 2:
		if o.rd, err = parseRegister(l.args[0]); err != nil {
			return err
		}

		target = l.args[1]
	default:
		return errors.Wrap(ErrInvalidOperand, "expected 1 or 2 operands, got %d", len(l.args))
	}

	o.imm, err = a.target(target, minJumpWords, maxJumpWords)

	return err
}

// target resolves a branch or jump operand to a byte offset. The operand is
// either a literal word count or a label, which resolves to the word
// distance from the current instruction.
func (a *Assembler) target(arg string, lo, hi int64) (int64, error) {
	var words int64

	if v, err := parseImmediate(arg); err == nil {
		words = v
	} else {
		if !isIdent(arg) {
			return 0, errors.Wrap(ErrInvalidOperand, "bad target %q", arg)
		}

		addr, ok := a.labels.Lookup(arg)
		if !ok {
			return 0, errors.Wrap(ErrUndefinedLabel, "%q", arg)
		}

		words = (int64(addr) - int64(a.address)) >> 2
	}

	if words < lo || words > hi {
		return 0, errors.Wrap(insts.ErrImmediateRange, "offset %d words", words)
	}

	return words * InstructionSize, nil
}
