package insts

import "tlog.app/go/errors"

// Immediate widths per format.
const (
	immWidthI  = 12
	immWidthB  = 13
	immWidthU  = 20
	immWidthJ  = 21
	shamtWidth = 5
)

// Encode packs an instruction into its 32-bit machine word.
//
// imm is interpreted per format: the sign-extended 12-bit immediate for
// I, L and S, the shift amount for IS, the 20-bit upper immediate for U and
// the byte offset for B and J.
func Encode(s Spec, rd, rs1, rs2 uint8, imm int32) (uint32, error) {
	if rd > 31 || rs1 > 31 || rs2 > 31 {
		return 0, errors.New("register out of range: rd %d rs1 %d rs2 %d", rd, rs1, rs2)
	}

	op := uint32(s.Opcode)
	f3 := uint32(s.Funct3) << 12
	f7 := uint32(s.Funct7) << 25
	d := uint32(rd) << 7
	r1 := uint32(rs1) << 15
	r2 := uint32(rs2) << 20

	switch s.Format {
	case FormatR:
		return f7 | r2 | r1 | f3 | d | op, nil

	case FormatI, FormatL:
		if !FitsSigned(int64(imm), immWidthI) {
			return 0, errors.Wrap(ErrImmediateRange, "%s immediate %d", s.Mnemonic, imm)
		}

		return uint32(imm)&0xFFF<<20 | r1 | f3 | d | op, nil

	case FormatIS:
		if !FitsUnsigned(int64(imm), shamtWidth) {
			return 0, errors.Wrap(ErrImmediateRange, "%s shift amount %d", s.Mnemonic, imm)
		}

		return f7 | uint32(imm)<<20 | r1 | f3 | d | op, nil

	case FormatS:
		if !FitsSigned(int64(imm), immWidthI) {
			return 0, errors.Wrap(ErrImmediateRange, "%s offset %d", s.Mnemonic, imm)
		}

		u := uint32(imm)

		return Field(u, 11, 5)<<25 | r2 | r1 | f3 | Field(u, 4, 0)<<7 | op, nil

	case FormatB:
		if !FitsSigned(int64(imm), immWidthB) || imm&1 != 0 {
			return 0, errors.Wrap(ErrImmediateRange, "%s offset %d", s.Mnemonic, imm)
		}

		u := uint32(imm)

		return Field(u, 12, 12)<<31 | Field(u, 10, 5)<<25 | r2 | r1 | f3 |
			Field(u, 4, 1)<<8 | Field(u, 11, 11)<<7 | op, nil

	case FormatU:
		if !FitsSigned(int64(imm), immWidthU) && !FitsUnsigned(int64(imm), immWidthU) {
			return 0, errors.Wrap(ErrImmediateRange, "%s immediate %d", s.Mnemonic, imm)
		}

		return uint32(imm)&0xFFFFF<<12 | d | op, nil

	case FormatJ:
		if !FitsSigned(int64(imm), immWidthJ) || imm&1 != 0 {
			return 0, errors.Wrap(ErrImmediateRange, "%s offset %d", s.Mnemonic, imm)
		}

		u := uint32(imm)

		return Field(u, 20, 20)<<31 | Field(u, 10, 1)<<21 | Field(u, 11, 11)<<20 |
			Field(u, 19, 12)<<12 | d | op, nil

	default:
		return 0, errors.Wrap(ErrUnknownMnemonic, "format %v", s.Format)
	}
}
