package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/asm"
	"github.com/sarchlab/rv32sim/emu"
)

func program(lines ...string) *emu.InstructionMemory {
	words, err := asm.Words(asm.New().AssembleAll(lines))
	Expect(err).ToNot(HaveOccurred())

	return emu.NewInstructionMemory(words)
}

var _ = Describe("Emulator", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory(emu.DefaultMemoryWords)
	})

	run := func(im *emu.InstructionMemory) *emu.Emulator {
		e := emu.NewEmulator(im,
			emu.WithRegFile(regFile),
			emu.WithMemory(memory),
			emu.WithMaxInstructions(10000),
		)
		Expect(e.Run()).To(Succeed())
		Expect(e.Halted()).To(BeTrue())

		return e
	}

	It("should load a word", func() {
		Expect(memory.Load(map[int]int32{11: 10})).To(Succeed())

		run(program("lw x5, 11(x6)", "addi x1, x1, 1"))

		Expect(regFile.ReadReg(5)).To(Equal(int32(10)))
		Expect(regFile.ReadReg(1)).To(Equal(int32(1)))
	})

	It("should run the sum-of-n program", func() {
		Expect(memory.Load(map[int]int32{11: 10})).To(Succeed())

		e := run(program(
			"lw x5, 11(x6)",
			"addi x1, x1, 1",
			"addi x5, x5, 1",
			"sum_loop:",
			"beq x1, x5, done",
			"add x2, x2, x1",
			"addi x1, x1, 1",
			"jal x3, sum_loop",
			"done:",
			"sw x2, 0(x31)",
		))

		Expect(regFile.ReadReg(2)).To(Equal(int32(55)))
		Expect(memory.Read(0)).To(Equal(int32(55)))
		Expect(regFile.ReadReg(3)).To(Equal(int32(28)))
		Expect(e.PC()).To(Equal(uint32(32)))
	})

	It("should run the fibonacci program", func() {
		Expect(memory.Load(map[int]int32{0: 10, 1: 1})).To(Succeed())

		run(program(
			"lw x1, 0(x0)",
			"beq x1, x0, done",
			"addi x3, x3, 1",
			"beq x1, x3, done",
			"addi x2, x0, 1",
			"addi x4, x4, 1",
			"for:",
			"beq x2, x1, done",
			"add x3, x4, x5",
			"add x5, x4, x0",
			"add x4, x3, x0",
			"addi x2, x2, 1",
			"jal x6, for",
			"done:",
			"sw x3, 1(x0)",
		))

		Expect(regFile.ReadReg(3)).To(Equal(int32(55)))
		Expect(memory.Read(1)).To(Equal(int32(55)))
	})

	It("should skip the instruction after a taken branch", func() {
		run(program(
			"beq x0, x0, skip",
			"addi x1, x0, 99",
			"skip: addi x2, x0, 1",
		))

		Expect(regFile.ReadReg(1)).To(Equal(int32(0)))
		Expect(regFile.ReadReg(2)).To(Equal(int32(1)))
	})

	It("should compute upper immediates and links", func() {
		run(program(
			"lui x1, 1",
			"auipc x2, 1",
			"jal x3, 1",
			"addi x5, x0, 20",
			"jalr x4, x5, 0",
			"addi x6, x0, 1",
		))

		Expect(regFile.ReadReg(1)).To(Equal(int32(4096)))
		Expect(regFile.ReadReg(2)).To(Equal(int32(4096 + 4)))
		Expect(regFile.ReadReg(3)).To(Equal(int32(12)))
		Expect(regFile.ReadReg(4)).To(Equal(int32(20)))
		Expect(regFile.ReadReg(6)).To(Equal(int32(1)))
	})

	It("should stop on out-of-range data accesses", func() {
		e := emu.NewEmulator(program("sw x1, 2000(x0)"), emu.WithMemory(memory))
		Expect(e.Run()).To(MatchError(emu.ErrAddressOutOfRange))
	})

	It("should stop at the instruction limit", func() {
		e := emu.NewEmulator(program("loop: jal x0, loop"), emu.WithMaxInstructions(5))
		Expect(e.Run()).To(MatchError(emu.ErrInstructionLimit))
		Expect(e.InstructionCount()).To(Equal(uint64(5)))
	})

	It("should fail on malformed instruction words", func() {
		im := emu.ParseInstructionMemory([]string{"0101"})
		r := emu.NewEmulator(im).Step()
		Expect(r.Err).To(MatchError(emu.ErrMalformedInstruction))
	})
})
