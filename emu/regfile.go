// Package emu provides the RV32I architectural state and a functional
// emulator.
//
// The register file, data memory and instruction memory defined here are
// shared with the timing pipeline, which uses the same ALU, branch and
// load/store helpers so both models compute identical results.
package emu

// NumRegs is the number of integer registers.
const NumRegs = 32

// RegFile represents the RV32I integer register file.
type RegFile struct {
	// X holds registers x0-x31.
	X [NumRegs]int32

	// HardwireZero makes x0 read as zero and ignore writes. When false, x0
	// is an ordinary register.
	HardwireZero bool
}

// ReadReg reads a register value. Registers >= 32 read as 0.
func (r *RegFile) ReadReg(reg uint8) int32 {
	if reg >= NumRegs || (reg == 0 && r.HardwireZero) {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to registers >= 32 are
// ignored, as are writes to x0 when it is hard-wired.
func (r *RegFile) WriteReg(reg uint8, value int32) {
	if reg >= NumRegs || (reg == 0 && r.HardwireZero) {
		return
	}
	r.X[reg] = value
}

// Load sets initial register values keyed by register number.
func (r *RegFile) Load(values map[int]int32) {
	for reg, v := range values {
		if reg >= 0 && reg < NumRegs {
			r.WriteReg(uint8(reg), v)
		}
	}
}

// Snapshot returns a copy of all register values.
func (r *RegFile) Snapshot() [NumRegs]int32 {
	s := r.X
	if r.HardwireZero {
		s[0] = 0
	}
	return s
}
