package emu

import "tlog.app/go/errors"

// ErrInvalidBranchCondition is returned for an unknown branch funct3.
var ErrInvalidBranchCondition = errors.New("invalid branch condition")

// Branch conditions by funct3.
const (
	condEQ  = 0b000
	condNE  = 0b001
	condLT  = 0b100
	condGE  = 0b101
	condLTU = 0b110
	condGEU = 0b111
)

// BranchTaken evaluates a conditional branch on its two register operands.
func BranchTaken(funct3 uint8, a, b int32) (bool, error) {
	switch funct3 {
	case condEQ:
		return a == b, nil
	case condNE:
		return a != b, nil
	case condLT:
		return a < b, nil
	case condGE:
		return a >= b, nil
	case condLTU:
		return uint32(a) < uint32(b), nil
	case condGEU:
		return uint32(a) >= uint32(b), nil
	default:
		return false, errors.Wrap(ErrInvalidBranchCondition, "funct3 %03b", funct3)
	}
}

// JumpTarget computes a control-transfer target and checks it is a
// non-negative multiple of four.
func JumpTarget(base, offset int32) (uint32, error) {
	t := int64(base) + int64(offset)
	if t < 0 || t%4 != 0 || t > int64(^uint32(0)) {
		return 0, errors.Wrap(ErrMisalignedTarget, "target %d", t)
	}
	return uint32(t), nil
}

// ErrMisalignedTarget is returned for branch and jump targets that are
// negative or not word aligned.
var ErrMisalignedTarget = errors.New("misaligned or negative target")
