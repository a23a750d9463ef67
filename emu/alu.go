package emu

import (
	"tlog.app/go/errors"
)

// ErrInvalidALUOperation is returned when no ALU operation matches the
// control fields.
var ErrInvalidALUOperation = errors.New("invalid ALU operation")

// ALUOpClass is the two-bit ALU operation class set by the control unit.
type ALUOpClass uint8

// ALU operation classes.
const (
	ALUOpMem    ALUOpClass = 0b00 // address computation: always add
	ALUOpBranch ALUOpClass = 0b01 // branch address computation: always add
	ALUOpR      ALUOpClass = 0b10 // register and immediate-shift arithmetic
	ALUOpI      ALUOpClass = 0b11 // immediate arithmetic
)

func (c ALUOpClass) String() string {
	switch c {
	case ALUOpMem:
		return "mem"
	case ALUOpBranch:
		return "branch"
	case ALUOpR:
		return "r"
	case ALUOpI:
		return "i"
	default:
		return "?"
	}
}

// Operation is a concrete ALU operation.
type Operation uint8

// ALU operations.
const (
	OpInvalid Operation = iota
	OpAdd
	OpSub
	OpSll
	OpSrl
	OpSra
	OpOr
	OpAnd
	OpXor
	OpSlt
	OpSltu
)

var operationNames = [...]string{
	OpInvalid: "invalid",
	OpAdd:     "add",
	OpSub:     "sub",
	OpSll:     "sll",
	OpSrl:     "srl",
	OpSra:     "sra",
	OpOr:      "or",
	OpAnd:     "and",
	OpXor:     "xor",
	OpSlt:     "slt",
	OpSltu:    "sltu",
}

func (op Operation) String() string {
	if int(op) < len(operationNames) {
		return operationNames[op]
	}
	return "invalid"
}

const funct7Alt = 0b0100000

// SelectOperation picks the ALU operation for an operation class and the
// instruction's funct3/funct7 fields. Unmatched combinations give
// OpInvalid.
//
// In the immediate class funct3 100 selects a left shift, so XORI shifts.
func SelectOperation(class ALUOpClass, funct3, funct7 uint8) Operation {
	switch class {
	case ALUOpMem, ALUOpBranch:
		return OpAdd

	case ALUOpR:
		switch funct3 {
		case 0b000:
			if funct7 == 0 {
				return OpAdd
			}
			return OpSub
		case 0b001:
			return OpSll
		case 0b010:
			return OpSlt
		case 0b011:
			return OpSltu
		case 0b100:
			return OpXor
		case 0b101:
			switch funct7 {
			case 0:
				return OpSrl
			case funct7Alt:
				return OpSra
			}
		case 0b110:
			return OpOr
		case 0b111:
			return OpAnd
		}

	case ALUOpI:
		switch funct3 {
		case 0b000:
			return OpAdd
		case 0b010:
			return OpSlt
		case 0b011:
			return OpSltu
		case 0b100:
			return OpSll
		case 0b110:
			return OpOr
		case 0b111:
			return OpAnd
		}
	}

	return OpInvalid
}

// Execute applies op to a and b with two's-complement semantics. Shift
// amounts use the low 5 bits of b.
func Execute(op Operation, a, b int32) (int32, error) {
	shamt := uint32(b) & 0x1F

	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpSll:
		return int32(uint32(a) << shamt), nil
	case OpSrl:
		return int32(uint32(a) >> shamt), nil
	case OpSra:
		return a >> shamt, nil
	case OpOr:
		return a | b, nil
	case OpAnd:
		return a & b, nil
	case OpXor:
		return a ^ b, nil
	case OpSlt:
		return boolToInt(a < b), nil
	case OpSltu:
		return boolToInt(uint32(a) < uint32(b)), nil
	default:
		return 0, errors.Wrap(ErrInvalidALUOperation, "%v", op)
	}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
