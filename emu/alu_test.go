package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/emu"
)

var _ = Describe("ALU", func() {
	DescribeTable("operation select",
		func(class emu.ALUOpClass, funct3, funct7 int, want emu.Operation) {
			Expect(emu.SelectOperation(class, uint8(funct3), uint8(funct7))).To(Equal(want))
		},
		Entry("R add", emu.ALUOpR, 0b000, 0, emu.OpAdd),
		Entry("R sub", emu.ALUOpR, 0b000, 0b0100000, emu.OpSub),
		Entry("R sll", emu.ALUOpR, 0b001, 0, emu.OpSll),
		Entry("R or", emu.ALUOpR, 0b110, 0, emu.OpOr),
		Entry("R and", emu.ALUOpR, 0b111, 0, emu.OpAnd),
		Entry("R xor", emu.ALUOpR, 0b100, 0, emu.OpXor),
		Entry("R srl", emu.ALUOpR, 0b101, 0, emu.OpSrl),
		Entry("R sra", emu.ALUOpR, 0b101, 0b0100000, emu.OpSra),
		Entry("R slt", emu.ALUOpR, 0b010, 0, emu.OpSlt),
		Entry("R sltu", emu.ALUOpR, 0b011, 0, emu.OpSltu),
		Entry("R bad shift funct7", emu.ALUOpR, 0b101, 0b0000001, emu.OpInvalid),
		Entry("I add", emu.ALUOpI, 0b000, 0, emu.OpAdd),
		Entry("I slt", emu.ALUOpI, 0b010, 0, emu.OpSlt),
		Entry("I funct3 100 shifts left", emu.ALUOpI, 0b100, 0, emu.OpSll),
		Entry("I or", emu.ALUOpI, 0b110, 0, emu.OpOr),
		Entry("I unmatched", emu.ALUOpI, 0b001, 0, emu.OpInvalid),
		Entry("mem", emu.ALUOpMem, 0b010, 0, emu.OpAdd),
		Entry("branch", emu.ALUOpBranch, 0b001, 0, emu.OpAdd),
		Entry("unknown class", emu.ALUOpClass(7), 0b000, 0, emu.OpInvalid),
	)

	DescribeTable("execute",
		func(op emu.Operation, a, b, want int) {
			Expect(emu.Execute(op, int32(a), int32(b))).To(Equal(int32(want)))
		},
		Entry("add wraps", emu.OpAdd, 2147483647, 1, -2147483648),
		Entry("sub", emu.OpSub, 3, 5, -2),
		Entry("sll masks the shift", emu.OpSll, 1, 33, 2),
		Entry("srl is logical", emu.OpSrl, -8, 1, 2147483644),
		Entry("sra is arithmetic", emu.OpSra, -8, 1, -4),
		Entry("or", emu.OpOr, 0b1010, 0b0101, 0b1111),
		Entry("and", emu.OpAnd, 0b1010, 0b0110, 0b0010),
		Entry("xor", emu.OpXor, 0b1010, 0b0110, 0b1100),
		Entry("slt signed", emu.OpSlt, -1, 0, 1),
		Entry("sltu unsigned", emu.OpSltu, -1, 0, 0),
	)

	It("should report invalid operations", func() {
		_, err := emu.Execute(emu.OpInvalid, 1, 2)
		Expect(err).To(MatchError(emu.ErrInvalidALUOperation))
	})
})

var _ = Describe("Branch and memory helpers", func() {
	DescribeTable("branch conditions",
		func(funct3, a, b int, want bool) {
			Expect(emu.BranchTaken(uint8(funct3), int32(a), int32(b))).To(Equal(want))
		},
		Entry("beq", 0b000, 4, 4, true),
		Entry("bne", 0b001, 4, 4, false),
		Entry("blt", 0b100, -1, 0, true),
		Entry("bge", 0b101, 0, -1, true),
		Entry("bltu", 0b110, -1, 0, false),
		Entry("bgeu", 0b111, -1, 0, true),
	)

	It("should reject unknown branch conditions", func() {
		_, err := emu.BranchTaken(0b010, 0, 0)
		Expect(err).To(MatchError(emu.ErrInvalidBranchCondition))
	})

	It("should check jump targets", func() {
		Expect(emu.JumpTarget(8, -4)).To(Equal(uint32(4)))

		_, err := emu.JumpTarget(0, -4)
		Expect(err).To(MatchError(emu.ErrMisalignedTarget))

		_, err = emu.JumpTarget(4, 2)
		Expect(err).To(MatchError(emu.ErrMisalignedTarget))
	})

	It("should apply load widths to the low part of a word", func() {
		Expect(emu.LoadValue(0b000, 0x1FF)).To(Equal(int32(-1)))
		Expect(emu.LoadValue(0b100, 0x1FF)).To(Equal(int32(0xFF)))
		Expect(emu.LoadValue(0b001, 0x18000)).To(Equal(int32(-32768)))
		Expect(emu.LoadValue(0b101, 0x18000)).To(Equal(int32(0x8000)))
		Expect(emu.LoadValue(0b010, -5)).To(Equal(int32(-5)))
	})

	It("should merge narrow stores", func() {
		Expect(emu.StoreValue(0b000, 0x12345678, 0xAB)).To(Equal(int32(0x123456AB)))
		Expect(emu.StoreValue(0b001, 0x12345678, -1)).To(Equal(int32(0x1234FFFF)))
		Expect(emu.StoreValue(0b010, 0x12345678, 7)).To(Equal(int32(7)))

		_, err := emu.StoreValue(0b011, 0, 0)
		Expect(err).To(MatchError(emu.ErrInvalidWidth))
	})
})
