package emu

import (
	"strings"

	"tlog.app/go/errors"

	"github.com/sarchlab/rv32sim/insts"
)

// ErrMalformedInstruction marks an instruction memory entry that is not a
// 32-bit word.
var ErrMalformedInstruction = errors.New("malformed instruction word")

// InstructionMemory holds a program as 32-bit words. Entries parsed from
// text may carry a fault instead of a word; the fault surfaces when the
// entry is fetched.
type InstructionMemory struct {
	words  []uint32
	faults map[int]error
}

// NewInstructionMemory wraps already-encoded words.
func NewInstructionMemory(words []uint32) *InstructionMemory {
	w := make([]uint32, len(words))
	copy(w, words)

	return &InstructionMemory{words: w}
}

// ParseInstructionMemory builds instruction memory from 32-character
// '0'/'1' lines. Blank lines are skipped. A line of the wrong width or with
// other characters becomes a faulted entry so addresses stay aligned with
// the source.
func ParseInstructionMemory(lines []string) *InstructionMemory {
	im := &InstructionMemory{}

	for n, raw := range lines {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}

		w, err := insts.ToUnsigned(s)
		if err == nil && len(s) != insts.MaxBits {
			err = errors.New("width %d", len(s))
		}

		if err != nil {
			if im.faults == nil {
				im.faults = map[int]error{}
			}

			im.faults[len(im.words)] = errors.Wrap(ErrMalformedInstruction, "line %d: %v", n+1, err)
			w = 0
		}

		im.words = append(im.words, w)
	}

	return im
}

// Len returns the number of instruction slots.
func (im *InstructionMemory) Len() int {
	return len(im.words)
}

// Fetch returns the word at index. Faulted entries return their fault.
func (im *InstructionMemory) Fetch(index int) (uint32, error) {
	if index < 0 || index >= len(im.words) {
		return 0, errors.Wrap(ErrAddressOutOfRange, "instruction %d of %d", index, len(im.words))
	}

	if err := im.faults[index]; err != nil {
		return 0, err
	}

	return im.words[index], nil
}

// Words returns a copy of the program words. Faulted entries read as zero.
func (im *InstructionMemory) Words() []uint32 {
	w := make([]uint32, len(im.words))
	copy(w, im.words)
	return w
}
