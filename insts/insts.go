// Package insts provides RV32I instruction definitions, bit-field helpers
// and decoding.
//
// This package implements the static format tables used by the assembler and
// the decoder that turns RV32I machine words back into structured
// instruction representations. It supports:
//   - Register/register arithmetic: ADD, SUB, XOR, OR, AND, SLL, SRL, SRA, SLT, SLTU
//   - Immediate arithmetic and shifts: ADDI, XORI, ORI, ANDI, SLTI, SLTIU, SLLI, SRLI, SRAI
//   - Loads and stores: LB, LH, LW, LBU, LHU, SB, SH, SW
//   - Control transfer: BEQ, BNE, BLT, BGE, BLTU, BGEU, JAL, JALR
//   - Upper immediates: LUI, AUIPC
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x00108093) // ADDI x1, x1, 1
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
