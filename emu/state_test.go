package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/emu"
)

var _ = Describe("RegFile", func() {
	It("should treat x0 as an ordinary register by default", func() {
		rf := &emu.RegFile{}
		rf.WriteReg(0, 7)
		Expect(rf.ReadReg(0)).To(Equal(int32(7)))
	})

	It("should hard-wire x0 when asked", func() {
		rf := &emu.RegFile{HardwireZero: true}
		rf.WriteReg(0, 7)
		Expect(rf.ReadReg(0)).To(Equal(int32(0)))
		Expect(rf.Snapshot()[0]).To(Equal(int32(0)))
	})

	It("should ignore registers past x31", func() {
		rf := &emu.RegFile{}
		rf.WriteReg(32, 1)
		Expect(rf.ReadReg(32)).To(Equal(int32(0)))
	})

	It("should load initial values", func() {
		rf := &emu.RegFile{}
		rf.Load(map[int]int32{5: -3, 31: 9, 40: 1})
		Expect(rf.ReadReg(5)).To(Equal(int32(-3)))
		Expect(rf.ReadReg(31)).To(Equal(int32(9)))
	})
})

var _ = Describe("Memory", func() {
	var mem *emu.Memory

	BeforeEach(func() {
		mem = emu.NewMemory(16)
	})

	It("should read back written words", func() {
		Expect(mem.Write(3, -42)).To(Succeed())
		Expect(mem.Read(3)).To(Equal(int32(-42)))
	})

	It("should reject out-of-range addresses", func() {
		_, err := mem.Read(16)
		Expect(err).To(MatchError(emu.ErrAddressOutOfRange))
		Expect(mem.Write(-1, 0)).To(MatchError(emu.ErrAddressOutOfRange))
	})

	It("should track written words separately from the initial image", func() {
		Expect(mem.Load(map[int]int32{11: 10})).To(Succeed())
		Expect(mem.Write(0, 55)).To(Succeed())
		Expect(mem.Write(7, 1)).To(Succeed())

		Expect(mem.Read(11)).To(Equal(int32(10)))
		Expect(mem.Written(11)).To(BeFalse())
		Expect(mem.WrittenAddrs()).To(Equal([]int{0, 7}))
	})

	It("should reject images outside memory", func() {
		Expect(mem.Load(map[int]int32{16: 1})).To(MatchError(emu.ErrAddressOutOfRange))
	})

	It("should default to 1024 words", func() {
		Expect(emu.NewMemory(0).Size()).To(Equal(emu.DefaultMemoryWords))
	})
})

var _ = Describe("InstructionMemory", func() {
	It("should parse bit-string lines", func() {
		im := emu.ParseInstructionMemory([]string{
			"00000000000100001000000010010011",
			"",
			"  00000000000100001000000010010011  ",
		})

		Expect(im.Len()).To(Equal(2))
		Expect(im.Fetch(1)).To(Equal(uint32(0x00108093)))
	})

	It("should keep malformed lines as faults in place", func() {
		im := emu.ParseInstructionMemory([]string{
			"00000000000100001000000010010011",
			"0101",
			"0000000000010000100000001001001x",
		})

		Expect(im.Len()).To(Equal(3))

		_, err := im.Fetch(1)
		Expect(err).To(MatchError(emu.ErrMalformedInstruction))

		_, err = im.Fetch(2)
		Expect(err).To(MatchError(emu.ErrMalformedInstruction))
		Expect(im.Words()[2]).To(Equal(uint32(0)))
	})

	It("should reject fetches outside the program", func() {
		im := emu.NewInstructionMemory([]uint32{0x13})
		_, err := im.Fetch(1)
		Expect(err).To(MatchError(emu.ErrAddressOutOfRange))
	})
})
