package insts

import (
	"strings"

	"tlog.app/go/errors"
)

// Table errors.
var (
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	ErrUnknownOpcode   = errors.New("unknown opcode")
)

// Format represents an RV32I instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // Register/register
	FormatI              // Immediate arithmetic (and JALR)
	FormatIS             // Immediate shift
	FormatL              // Load
	FormatS              // Store
	FormatB              // Conditional branch
	FormatU              // Upper immediate
	FormatJ              // Jump and link
)

var formatNames = [...]string{
	FormatUnknown: "?",
	FormatR:       "R",
	FormatI:       "I",
	FormatIS:      "IS",
	FormatL:       "L",
	FormatS:       "S",
	FormatB:       "B",
	FormatU:       "U",
	FormatJ:       "J",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}

	return "?"
}

// Class opcodes (7 bits).
const (
	OpcodeR     uint8 = 0b0110011
	OpcodeI     uint8 = 0b0010011 // shared by I and IS
	OpcodeL     uint8 = 0b0000011
	OpcodeS     uint8 = 0b0100011
	OpcodeB     uint8 = 0b1100011
	OpcodeU     uint8 = 0b0110111 // LUI
	OpcodeJ     uint8 = 0b1101111
	OpcodeAUIPC uint8 = 0b0010111
	OpcodeJALR  uint8 = 0b1100111
)

// Opcode returns the class opcode of the format.
func (f Format) Opcode() uint8 {
	switch f {
	case FormatR:
		return OpcodeR
	case FormatI, FormatIS:
		return OpcodeI
	case FormatL:
		return OpcodeL
	case FormatS:
		return OpcodeS
	case FormatB:
		return OpcodeB
	case FormatU:
		return OpcodeU
	case FormatJ:
		return OpcodeJ
	default:
		return 0
	}
}

// Op represents an RV32I operation.
type Op uint8

// RV32I operations.
const (
	OpUnknown Op = iota
	OpADD
	OpSUB
	OpXOR
	OpOR
	OpAND
	OpSLL
	OpSRL
	OpSRA
	OpSLT
	OpSLTU
	OpADDI
	OpXORI
	OpORI
	OpANDI
	OpSLTI
	OpSLTIU
	OpJALR
	OpSLLI
	OpSRLI
	OpSRAI
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLUI
	OpAUIPC
	OpJAL
	numOps
)

// Spec describes how a mnemonic is encoded.
type Spec struct {
	Op        Op
	Mnemonic  string
	Format    Format
	Funct3    uint8
	Funct7    uint8
	HasFunct7 bool
	Opcode    uint8
}

func spec(op Op, name string, f Format, funct3 uint8) Spec {
	return Spec{Op: op, Mnemonic: name, Format: f, Funct3: funct3, Opcode: f.Opcode()}
}

func spec7(op Op, name string, f Format, funct3, funct7 uint8) Spec {
	s := spec(op, name, f, funct3)
	s.Funct7 = funct7
	s.HasFunct7 = true

	return s
}

var specs = [numOps]Spec{
	OpADD:  spec7(OpADD, "ADD", FormatR, 0b000, 0b0000000),
	OpSUB:  spec7(OpSUB, "SUB", FormatR, 0b000, 0b0100000),
	OpXOR:  spec7(OpXOR, "XOR", FormatR, 0b100, 0b0000000),
	OpOR:   spec7(OpOR, "OR", FormatR, 0b110, 0b0000000),
	OpAND:  spec7(OpAND, "AND", FormatR, 0b111, 0b0000000),
	OpSLL:  spec7(OpSLL, "SLL", FormatR, 0b001, 0b0000000),
	OpSRL:  spec7(OpSRL, "SRL", FormatR, 0b101, 0b0000000),
	OpSRA:  spec7(OpSRA, "SRA", FormatR, 0b101, 0b0100000),
	OpSLT:  spec7(OpSLT, "SLT", FormatR, 0b010, 0b0000000),
	OpSLTU: spec7(OpSLTU, "SLTU", FormatR, 0b011, 0b0000000),

	OpADDI:  spec(OpADDI, "ADDI", FormatI, 0b000),
	OpXORI:  spec(OpXORI, "XORI", FormatI, 0b100),
	OpORI:   spec(OpORI, "ORI", FormatI, 0b110),
	OpANDI:  spec(OpANDI, "ANDI", FormatI, 0b111),
	OpSLTI:  spec(OpSLTI, "SLTI", FormatI, 0b010),
	OpSLTIU: spec(OpSLTIU, "SLTIU", FormatI, 0b011),
	OpJALR:  {Op: OpJALR, Mnemonic: "JALR", Format: FormatI, Funct3: 0b000, Opcode: OpcodeJALR},

	OpSLLI: spec7(OpSLLI, "SLLI", FormatIS, 0b001, 0b0000000),
	OpSRLI: spec7(OpSRLI, "SRLI", FormatIS, 0b101, 0b0000000),
	OpSRAI: spec7(OpSRAI, "SRAI", FormatIS, 0b101, 0b0100000),

	OpLB:  spec(OpLB, "LB", FormatL, 0b000),
	OpLH:  spec(OpLH, "LH", FormatL, 0b001),
	OpLW:  spec(OpLW, "LW", FormatL, 0b010),
	OpLBU: spec(OpLBU, "LBU", FormatL, 0b100),
	OpLHU: spec(OpLHU, "LHU", FormatL, 0b101),

	OpSB: spec(OpSB, "SB", FormatS, 0b000),
	OpSH: spec(OpSH, "SH", FormatS, 0b001),
	OpSW: spec(OpSW, "SW", FormatS, 0b010),

	OpBEQ:  spec(OpBEQ, "BEQ", FormatB, 0b000),
	OpBNE:  spec(OpBNE, "BNE", FormatB, 0b001),
	OpBLT:  spec(OpBLT, "BLT", FormatB, 0b100),
	OpBGE:  spec(OpBGE, "BGE", FormatB, 0b101),
	OpBLTU: spec(OpBLTU, "BLTU", FormatB, 0b110),
	OpBGEU: spec(OpBGEU, "BGEU", FormatB, 0b111),

	OpLUI:   spec(OpLUI, "LUI", FormatU, 0),
	OpAUIPC: {Op: OpAUIPC, Mnemonic: "AUIPC", Format: FormatU, Opcode: OpcodeAUIPC},

	OpJAL: spec(OpJAL, "JAL", FormatJ, 0),
}

var byMnemonic = func() map[string]Spec {
	m := make(map[string]Spec, len(specs))
	for _, s := range specs[1:] {
		m[s.Mnemonic] = s
	}

	return m
}()

// Lookup returns the encoding of a mnemonic. The lookup is case-insensitive.
func Lookup(mnemonic string) (Spec, error) {
	s, ok := byMnemonic[strings.ToUpper(mnemonic)]
	if !ok {
		return Spec{}, errors.Wrap(ErrUnknownMnemonic, "%q", mnemonic)
	}

	return s, nil
}

// SpecOf returns the encoding of op.
func SpecOf(op Op) (Spec, bool) {
	if op == OpUnknown || op >= numOps {
		return Spec{}, false
	}

	return specs[op], true
}

// Mnemonics returns every supported mnemonic in table order.
func Mnemonics() []string {
	names := make([]string, 0, len(specs)-1)
	for _, s := range specs[1:] {
		names = append(names, s.Mnemonic)
	}

	return names
}

func (op Op) String() string {
	if s, ok := SpecOf(op); ok {
		return s.Mnemonic
	}

	return "UNKNOWN"
}

// LookupEncoding maps opcode, funct3 and funct7 fields back to an encoding.
// funct7 is only consulted for formats that carry one.
func LookupEncoding(opcode, funct3, funct7 uint8) (Spec, error) {
	for _, s := range specs[1:] {
		if s.Opcode != opcode {
			continue
		}

		switch s.Format {
		case FormatU, FormatJ:
			return s, nil
		}

		if s.Funct3 != funct3 {
			continue
		}

		if s.HasFunct7 && s.Funct7 != funct7 {
			continue
		}

		return s, nil
	}

	return Spec{}, errors.Wrap(ErrUnknownOpcode, "opcode %07b funct3 %03b funct7 %07b", opcode, funct3, funct7)
}
