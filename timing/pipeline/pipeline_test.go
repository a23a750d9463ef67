package pipeline_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/asm"
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

func program(lines ...string) *emu.InstructionMemory {
	words, err := asm.Words(asm.New().AssembleAll(lines))
	Expect(err).ToNot(HaveOccurred())

	return emu.NewInstructionMemory(words)
}

var _ = Describe("Pipeline", func() {
	var (
		regFile  *emu.RegFile
		memory   *emu.Memory
		pipe     *pipeline.Pipeline
		retired  []pipeline.Retirement
		observer pipeline.PipelineOption
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory(emu.DefaultMemoryWords)
		retired = nil
		observer = pipeline.WithObserver(func(s pipeline.Snapshot) {
			if s.Retired != nil {
				retired = append(retired, *s.Retired)
			}
		})
	})

	run := func(im *emu.InstructionMemory, opts ...pipeline.PipelineOption) {
		opts = append(opts, observer, pipeline.WithMaxCycles(100000))
		pipe = pipeline.NewPipeline(im, regFile, memory, opts...)
		Expect(pipe.Run(context.Background())).To(Succeed())
		Expect(pipe.Halted()).To(BeTrue())
	}

	retireCycle := func(rd uint8) uint64 {
		for _, r := range retired {
			if r.Wrote && r.Rd == rd {
				return r.Cycle
			}
		}
		Fail("register never written")
		return 0
	}

	Describe("NewPipeline", func() {
		It("should create a pipeline with default state", func() {
			pipe = pipeline.NewPipeline(program("addi x1, x1, 1"), nil, nil)
			Expect(pipe).NotTo(BeNil())
			Expect(pipe.PC()).To(Equal(uint32(0)))
			Expect(pipe.Halted()).To(BeFalse())
			Expect(pipe.Flags().PCAvailable).To(BeTrue())
			Expect(pipe.Memory().Size()).To(Equal(emu.DefaultMemoryWords))
		})

		It("should start halted on an empty program", func() {
			pipe = pipeline.NewPipeline(emu.NewInstructionMemory(nil), regFile, memory)
			Expect(pipe.Halted()).To(BeTrue())
			Expect(pipe.Run(context.Background())).To(Succeed())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(0)))
		})
	})

	Describe("Tick", func() {
		It("should fill the pipeline one stage per cycle", func() {
			pipe = pipeline.NewPipeline(program("addi x1, x0, 1", "addi x2, x0, 2"), regFile, memory)

			pipe.Tick()
			Expect(pipe.Flags()).To(Equal(pipeline.StageFlags{PCAvailable: true, Fetched: true}))

			pipe.Tick()
			Expect(pipe.Flags()).To(Equal(pipeline.StageFlags{Fetched: true, Decoded: true}))
			Expect(pipe.GetIDEX().Inst.Op).To(Equal(insts.OpADDI))

			pipe.Tick()
			Expect(pipe.Flags()).To(Equal(pipeline.StageFlags{Decoded: true, Executed: true}))
			Expect(pipe.GetEXMO().ALUResult).To(Equal(int32(1)))

			pipe.Tick()
			Expect(pipe.Flags()).To(Equal(pipeline.StageFlags{Executed: true, MemoryDone: true}))

			pipe.Tick()
			Expect(regFile.ReadReg(1)).To(Equal(int32(1)))
			Expect(pipe.Flags()).To(Equal(pipeline.StageFlags{MemoryDone: true}))

			pipe.Tick()
			Expect(regFile.ReadReg(2)).To(Equal(int32(2)))
			Expect(pipe.Halted()).To(BeTrue())
			Expect(pipe.Flags().Any()).To(BeFalse())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(6)))
			Expect(pipe.Stats().CPI()).To(Equal(3.0))
		})

		It("should not advance after halting", func() {
			pipe = pipeline.NewPipeline(program("addi x1, x0, 1"), regFile, memory)
			Expect(pipe.RunCycles(100)).To(BeFalse())

			cycles := pipe.Stats().Cycles
			pipe.Tick()
			Expect(pipe.Stats().Cycles).To(Equal(cycles))
		})
	})

	Describe("data hazards", func() {
		It("should load a word before a dependent-free instruction", func() {
			Expect(memory.Load(map[int]int32{11: 10})).To(Succeed())

			run(program("lw x5, 11(x6)", "addi x1, x1, 1"))

			Expect(regFile.ReadReg(5)).To(Equal(int32(10)))
			Expect(regFile.ReadReg(1)).To(Equal(int32(1)))
			Expect(pipe.Stats().DataHazards).To(BeZero())
		})

		It("should hold a dependent instruction until the producer writes back", func() {
			regFile.WriteReg(1, 3)

			run(program("add x1, x1, x1", "add x2, x1, x1"))

			Expect(regFile.ReadReg(1)).To(Equal(int32(6)))
			Expect(regFile.ReadReg(2)).To(Equal(int32(12)))
			Expect(retireCycle(1)).To(Equal(uint64(5)))
			Expect(retireCycle(2)).To(Equal(uint64(8)))

			stats := pipe.Stats()
			Expect(stats.Cycles).To(Equal(uint64(8)))
			Expect(stats.DataHazards).To(Equal(uint64(1)))
			Expect(stats.Bubbles[pipeline.BubbleHazardRelease]).To(Equal(uint64(1)))
		})

		It("should keep the dependent instruction out of execute while stalled", func() {
			regFile.WriteReg(1, 3)
			pipe = pipeline.NewPipeline(program("add x1, x1, x1", "add x2, x1, x1"), regFile, memory)

			pipe.RunCycles(3)
			Expect(pipe.HazardUnit().DataStall()).To(BeTrue())
			Expect(pipe.HazardUnit().Locked(1)).To(BeTrue())

			pipe.Tick()
			Expect(pipe.GetIDEX().Valid).To(BeTrue())
			Expect(pipe.Snapshot().Registers[1]).To(Equal(int32(3)))

			pipe.Tick()
			Expect(pipe.HazardUnit().DataStall()).To(BeFalse())
			Expect(pipe.GetIDEX().Valid).To(BeTrue())
			Expect(regFile.ReadReg(1)).To(Equal(int32(6)))

			pipe.Tick()
			Expect(pipe.GetEXMO().ALUResult).To(Equal(int32(12)))
		})

		It("should stall a store on the register it writes to memory", func() {
			run(program("addi x2, x0, 42", "sw x2, 3(x0)"))

			Expect(memory.Read(3)).To(Equal(int32(42)))
			Expect(memory.WrittenAddrs()).To(Equal([]int{3}))
		})

		It("should not track x0 when it is hard-wired", func() {
			run(program("addi x0, x0, 5", "addi x1, x0, 1"), pipeline.WithHardwiredZero(true))

			Expect(regFile.ReadReg(0)).To(Equal(int32(0)))
			Expect(regFile.ReadReg(1)).To(Equal(int32(1)))
			Expect(pipe.Stats().DataHazards).To(BeZero())
		})

		It("should treat x0 as an ordinary register by default", func() {
			run(program("addi x0, x0, 5", "addi x1, x0, 1"))

			Expect(regFile.ReadReg(0)).To(Equal(int32(5)))
			Expect(regFile.ReadReg(1)).To(Equal(int32(6)))
			Expect(pipe.Stats().DataHazards).To(Equal(uint64(1)))
		})
	})

	Describe("control hazards", func() {
		It("should never retire the instruction after a taken branch", func() {
			run(program(
				"beq x0, x0, skip",
				"addi x1, x0, 99",
				"skip: addi x2, x0, 1",
			))

			Expect(regFile.ReadReg(1)).To(BeZero())
			Expect(regFile.ReadReg(2)).To(Equal(int32(1)))

			pcs := []uint32{}
			for _, r := range retired {
				pcs = append(pcs, r.PC)
			}
			Expect(pcs).To(Equal([]uint32{0, 8}))

			stats := pipe.Stats()
			Expect(stats.Cycles).To(Equal(uint64(7)))
			Expect(stats.ControlHazards).To(Equal(uint64(1)))
			Expect(stats.Redirects).To(Equal(uint64(1)))
			Expect(stats.Stalls).To(Equal(uint64(1)))
			Expect(stats.Bubbles[pipeline.BubbleBranchResolve]).To(Equal(uint64(1)))
		})

		It("should fall through a branch that is not taken", func() {
			run(program(
				"addi x1, x0, 1",
				"beq x0, x1, skip",
				"addi x2, x0, 7",
				"skip: addi x3, x0, 1",
			))

			Expect(regFile.ReadReg(2)).To(Equal(int32(7)))
			Expect(regFile.ReadReg(3)).To(Equal(int32(1)))
			Expect(pipe.Stats().Redirects).To(BeZero())
		})

		It("should charge separate bubbles for a branch with a data hazard", func() {
			run(program(
				"addi x5, x0, 1",
				"beq x5, x0, end",
				"addi x6, x0, 2",
				"end:",
			))

			stats := pipe.Stats()
			Expect(stats.Bubbles[pipeline.BubbleHazardRelease]).To(Equal(uint64(1)))
			Expect(stats.Bubbles[pipeline.BubbleBranchResolve]).To(Equal(uint64(1)))
			Expect(stats.TotalBubbles()).To(Equal(uint64(2)))
			Expect(regFile.ReadReg(6)).To(Equal(int32(2)))
		})

		It("should link and jump through jalr", func() {
			run(program(
				"addi x5, x0, 12",
				"jalr x4, x5, 0",
				"addi x6, x0, 9",
				"addi x7, x0, 1",
			))

			Expect(regFile.ReadReg(4)).To(Equal(int32(8)))
			Expect(regFile.ReadReg(6)).To(BeZero())
			Expect(regFile.ReadReg(7)).To(Equal(int32(1)))
		})
	})

	Describe("programs", func() {
		It("should run the sum-of-n program", func() {
			Expect(memory.Load(map[int]int32{11: 10})).To(Succeed())

			run(program(
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
		})

		DescribeTable("counting loop",
			func(n int) {
				Expect(memory.Load(map[int]int32{0: int32(n)})).To(Succeed())

				run(program(
					"lw x5, 0(x31)",
					"loop: beq x1, x5, done",
					"addi x1, x1, 1",
					"jal x3, loop",
					"done: sw x1, 1(x31)",
				))

				Expect(regFile.ReadReg(1)).To(Equal(int32(n)))
				Expect(memory.Read(1)).To(Equal(int32(n)))
			},
			Entry("zero", 0),
			Entry("one", 1),
			Entry("ten", 10),
		)

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
	})

	Describe("errors", func() {
		It("should stop on a malformed instruction word", func() {
			pipe = pipeline.NewPipeline(emu.ParseInstructionMemory([]string{
				"00000000000100001000000010010011",
				"0101",
				"00000000000100001000000010010011",
			}), regFile, memory)

			err := pipe.Run(context.Background())
			Expect(err).To(MatchError(emu.ErrMalformedInstruction))
			Expect(pipe.Halted()).To(BeTrue())
			Expect(pipe.Err()).To(MatchError(emu.ErrMalformedInstruction))

			cycles := pipe.Stats().Cycles
			pipe.Tick()
			Expect(pipe.Stats().Cycles).To(Equal(cycles))
		})

		It("should stop on an unknown opcode", func() {
			pipe = pipeline.NewPipeline(emu.NewInstructionMemory([]uint32{0}), regFile, memory)
			Expect(pipe.Run(context.Background())).To(MatchError(insts.ErrUnknownOpcode))
		})

		It("should stop on an out-of-range data address", func() {
			pipe = pipeline.NewPipeline(program("lw x1, 2000(x0)"), regFile, memory)
			Expect(pipe.Run(context.Background())).To(MatchError(emu.ErrAddressOutOfRange))
		})

		It("should stop on a misaligned jump target", func() {
			pipe = pipeline.NewPipeline(program("addi x5, x0, 6", "jalr x1, x5, 0"), regFile, memory)
			Expect(pipe.Run(context.Background())).To(MatchError(emu.ErrMisalignedTarget))
		})

		It("should stop on a negative jump target", func() {
			pipe = pipeline.NewPipeline(program("jal x1, -1"), regFile, memory)
			Expect(pipe.Run(context.Background())).To(MatchError(emu.ErrMisalignedTarget))
		})

		It("should honour the cycle limit", func() {
			pipe = pipeline.NewPipeline(program("loop: jal x1, loop"), regFile, memory, pipeline.WithMaxCycles(50))
			Expect(pipe.Run(context.Background())).To(MatchError(pipeline.ErrCycleLimit))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(50)))
		})

		It("should honour context cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			pipe = pipeline.NewPipeline(program("addi x1, x0, 1"), regFile, memory)
			Expect(pipe.Run(ctx)).To(MatchError(context.Canceled))
		})
	})

	Describe("observation", func() {
		It("should deliver one snapshot per cycle", func() {
			var snaps []pipeline.Snapshot

			pipe = pipeline.NewPipeline(program("addi x1, x0, 1", "sw x1, 2(x0)"), regFile, memory,
				pipeline.WithObserver(func(s pipeline.Snapshot) { snaps = append(snaps, s) }))
			Expect(pipe.Run(context.Background())).To(Succeed())

			Expect(snaps).To(HaveLen(int(pipe.Stats().Cycles)))
			Expect(snaps[0].Cycle).To(Equal(uint64(1)))

			last := snaps[len(snaps)-1]
			Expect(last.Halted).To(BeTrue())
			Expect(last.Flags.Any()).To(BeFalse())
			Expect(last.Registers[1]).To(Equal(int32(1)))
			Expect(last.Memory[2]).To(Equal(int32(1)))
		})

		It("should reset pipeline state but keep architectural state", func() {
			pipe = pipeline.NewPipeline(program("addi x1, x1, 1"), regFile, memory)
			Expect(pipe.Run(context.Background())).To(Succeed())

			pipe.Reset()
			Expect(pipe.Halted()).To(BeFalse())
			Expect(pipe.Stats()).To(Equal(pipeline.Statistics{}))

			Expect(pipe.Run(context.Background())).To(Succeed())
			Expect(regFile.ReadReg(1)).To(Equal(int32(2)))
		})
	})
})
