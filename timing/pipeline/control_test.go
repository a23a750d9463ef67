package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

var _ = Describe("ControlUnit", func() {
	cu := pipeline.NewControlUnit()

	DescribeTable("control words",
		func(opcode uint8, want pipeline.ControlWord) {
			Expect(cu.Decode(opcode)).To(Equal(want))
		},
		Entry("R", insts.OpcodeR, pipeline.ControlWord{RegRead: true, RegWrite: true, ALUOp: emu.ALUOpR}),
		Entry("I", insts.OpcodeI, pipeline.ControlWord{RegRead: true, RegWrite: true, ALUSrc: true, ALUOp: emu.ALUOpI}),
		Entry("L", insts.OpcodeL, pipeline.ControlWord{
			RegRead: true, RegWrite: true, ALUSrc: true, ALUOp: emu.ALUOpMem, MemRead: true, MemToReg: true,
		}),
		Entry("S", insts.OpcodeS, pipeline.ControlWord{RegRead: true, ALUSrc: true, ALUOp: emu.ALUOpMem, MemWrite: true}),
		Entry("B", insts.OpcodeB, pipeline.ControlWord{RegRead: true, ALUOp: emu.ALUOpBranch, Branch: true}),
		Entry("U", insts.OpcodeU, pipeline.ControlWord{RegWrite: true, ALUSrc: true, ALUOp: emu.ALUOpMem}),
		Entry("J", insts.OpcodeJ, pipeline.ControlWord{RegWrite: true, ALUOp: emu.ALUOpMem, Jump: true}),
	)

	It("should fail on unknown opcodes", func() {
		_, err := cu.Decode(0b1111111)
		Expect(err).To(MatchError(insts.ErrUnknownOpcode))
	})
})
