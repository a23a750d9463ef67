package insts

import (
	"fmt"
	"strings"
)

// Instruction represents a decoded RV32I instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format
	Word   uint32 // Raw machine word

	Opcode uint8 // bits [6:0]
	Rd     uint8 // Destination register
	Rs1    uint8 // First source register
	Rs2    uint8 // Second source register
	Funct3 uint8
	Funct7 uint8

	// Imm is the sign-extended immediate. It holds the byte offset for
	// B and J, the shift amount for IS and the raw 20-bit field for U.
	Imm int32
}

// ReadsRs1 reports whether the instruction reads rs1.
func (i *Instruction) ReadsRs1() bool {
	switch i.Format {
	case FormatR, FormatI, FormatIS, FormatL, FormatS, FormatB:
		return true
	default:
		return false
	}
}

// ReadsRs2 reports whether the instruction reads rs2.
func (i *Instruction) ReadsRs2() bool {
	switch i.Format {
	case FormatR, FormatS, FormatB:
		return true
	default:
		return false
	}
}

// WritesRd reports whether the instruction writes rd.
func (i *Instruction) WritesRd() bool {
	switch i.Format {
	case FormatS, FormatB, FormatUnknown:
		return false
	default:
		return true
	}
}

// String disassembles the instruction. Branch and jump offsets are printed
// as word counts so the text assembles back to the same word.
func (i *Instruction) String() string {
	name := strings.ToLower(i.Op.String())

	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", name, i.Rd, i.Rs1, i.Rs2)
	case FormatI, FormatIS:
		return fmt.Sprintf("%s x%d, x%d, %d", name, i.Rd, i.Rs1, i.Imm)
	case FormatL:
		return fmt.Sprintf("%s x%d, %d(x%d)", name, i.Rd, i.Imm, i.Rs1)
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", name, i.Rs2, i.Imm, i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", name, i.Rs1, i.Rs2, i.Imm/4)
	case FormatU:
		return fmt.Sprintf("%s x%d, %d", name, i.Rd, i.Imm)
	case FormatJ:
		return fmt.Sprintf("%s x%d, %d", name, i.Rd, i.Imm/4)
	default:
		return fmt.Sprintf("unknown %08x", i.Word)
	}
}

// Decoder decodes RV32I machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RV32I instruction word.
// Words whose opcode/funct fields match no known encoding return
// ErrUnknownOpcode.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	inst := &Instruction{
		Word:   word,
		Opcode: uint8(Field(word, 6, 0)),
		Rd:     uint8(Field(word, 11, 7)),
		Funct3: uint8(Field(word, 14, 12)),
		Rs1:    uint8(Field(word, 19, 15)),
		Rs2:    uint8(Field(word, 24, 20)),
		Funct7: uint8(Field(word, 31, 25)),
	}

	s, err := LookupEncoding(inst.Opcode, inst.Funct3, inst.Funct7)
	if err != nil {
		return nil, err
	}

	inst.Op = s.Op
	inst.Format = s.Format

	switch s.Format {
	case FormatR:
	case FormatI, FormatL:
		inst.Imm = SignExtendValue(Field(word, 31, 20), immWidthI)
	case FormatIS:
		inst.Imm = int32(Field(word, 24, 20))
	case FormatS:
		inst.Imm = SignExtendValue(Field(word, 31, 25)<<5|Field(word, 11, 7), immWidthI)
	case FormatB:
		inst.Imm = decodeB(word)
	case FormatU:
		inst.Imm = int32(Field(word, 31, 12))
	case FormatJ:
		inst.Imm = decodeJ(word)
	}

	clearUnused(inst)

	return inst, nil
}

// clearUnused zeroes fields that the format does not encode, so they
// cannot leak into hazard checks.
func clearUnused(inst *Instruction) {
	if !inst.ReadsRs1() {
		inst.Rs1 = 0
	}

	if !inst.ReadsRs2() {
		inst.Rs2 = 0
	}

	if !inst.WritesRd() {
		inst.Rd = 0
	}

	switch inst.Format {
	case FormatU, FormatJ:
		inst.Funct3 = 0
	}

	if inst.Format != FormatR && inst.Format != FormatIS {
		inst.Funct7 = 0
	}
}

// decodeB reassembles imm[12|10:5] ... imm[4:1|11] into a byte offset.
func decodeB(word uint32) int32 {
	imm := Field(word, 31, 31)<<12 |
		Field(word, 7, 7)<<11 |
		Field(word, 30, 25)<<5 |
		Field(word, 11, 8)<<1

	return SignExtendValue(imm, immWidthB)
}

// decodeJ reassembles imm[20|10:1|11|19:12] into a byte offset.
func decodeJ(word uint32) int32 {
	imm := Field(word, 31, 31)<<20 |
		Field(word, 19, 12)<<12 |
		Field(word, 20, 20)<<11 |
		Field(word, 30, 21)<<1

	return SignExtendValue(imm, immWidthJ)
}
