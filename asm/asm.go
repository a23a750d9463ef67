// Package asm implements a two-pass RV32I assembler.
//
// The first pass assigns every instruction a 4-byte aligned address and
// records label definitions. The second pass encodes each instruction,
// resolving branch and jump labels against the addresses fixed by the first
// pass. Branch and jump operands, whether literal or label, count words
// rather than bytes.
//
// Usage:
//
//	a := asm.New()
//	results := a.AssembleAll([]string{
//		"loop: addi x1, x1, 1",
//		"      bne x1, x2, loop",
//	})
//	for _, r := range results {
//		fmt.Println(r)
//	}
package asm

import (
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/rv32sim/insts"
)

// Assembler errors. Range errors are reported as insts.ErrImmediateRange.
var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidOperand  = errors.New("invalid operand syntax")
	ErrUndefinedLabel  = errors.New("undefined label")
)

// InstructionSize is the number of bytes each instruction occupies.
const InstructionSize = 4

// LabelTable maps upper-cased label names to byte addresses.
type LabelTable map[string]uint32

// Lookup returns the address of a label. The lookup is case-insensitive.
func (t LabelTable) Lookup(name string) (uint32, bool) {
	addr, ok := t[strings.ToUpper(name)]
	return addr, ok
}

// Result is the outcome of assembling one instruction line.
type Result struct {
	Line    int    // 1-based source line number
	Source  string // Source text of the line
	Address uint32 // Byte address assigned in the first pass
	Word    uint32 // Encoded machine word, valid when Err is nil
	Err     error
}

// Bits returns the 32-character binary form of the encoded word.
func (r Result) Bits() string {
	bits, _ := insts.ToBits(int64(r.Word), insts.MaxBits)
	return bits
}

func (r Result) String() string {
	if r.Err != nil {
		return "error: " + r.Err.Error()
	}

	return r.Bits()
}

// Assembler turns RV32I assembly text into machine words.
type Assembler struct {
	labels  LabelTable
	address uint32
}

// New creates an assembler with an empty label table.
func New() *Assembler {
	return &Assembler{labels: LabelTable{}}
}

// Labels returns the label table built by the last first pass.
func (a *Assembler) Labels() LabelTable {
	return a.labels
}

// Address returns the address the next instruction will be assembled at.
func (a *Assembler) Address() uint32 {
	return a.address
}

// SetAddress moves the address used by Assemble.
func (a *Assembler) SetAddress(addr uint32) {
	a.address = addr
}

// FirstPass scans lines and binds every label to the address of the next
// instruction. Each call starts from an empty table at address zero.
func (a *Assembler) FirstPass(lines []string) LabelTable {
	a.labels = LabelTable{}
	a.address = 0

	for n, raw := range lines {
		l := parseLine(raw)

		if l.label != "" {
			name := strings.ToUpper(l.label)
			if old, ok := a.labels[name]; ok {
				tlog.V("asm").Printw("duplicate label", "label", name, "line", n+1, "old", old, "new", a.address)
			}

			a.labels[name] = a.address
		}

		if l.op != "" {
			a.address += InstructionSize
		}
	}

	return a.labels
}

// AssembleAll runs both passes over lines. It returns one Result per
// instruction line in program order. A failing line carries its error and
// does not stop the others.
func (a *Assembler) AssembleAll(lines []string) []Result {
	a.FirstPass(lines)
	a.address = 0

	results := make([]Result, 0, len(lines))

	for n, raw := range lines {
		l := parseLine(raw)
		if l.op == "" {
			continue
		}

		r := Result{Line: n + 1, Source: strings.TrimSpace(raw), Address: a.address}
		r.Word, r.Err = a.encode(l)

		if r.Err != nil {
			tlog.V("asm").Printw("encode failed", "line", r.Line, "addr", r.Address, "err", r.Err)
		}

		results = append(results, r)
		a.address += InstructionSize
	}

	return results
}

// Assemble encodes a single instruction line at the current address using
// the current label table. A leading label on the line is ignored.
func (a *Assembler) Assemble(line string) (uint32, error) {
	l := parseLine(line)
	if l.op == "" {
		return 0, errors.Wrap(ErrInvalidMnemonic, "no instruction in %q", line)
	}

	return a.encode(l)
}

// Words collects the machine words of results. It fails with the first
// encoding error, annotated with its line number.
func Words(results []Result) ([]uint32, error) {
	words := make([]uint32, 0, len(results))

	for _, r := range results {
		if r.Err != nil {
			return nil, errors.Wrap(r.Err, "line %d", r.Line)
		}

		words = append(words, r.Word)
	}

	return words, nil
}

// AssembleSource assembles newline-separated source text.
func AssembleSource(src string) ([]uint32, error) {
	return Words(New().AssembleAll(SplitLines(src)))
}

// SplitLines splits source text into lines, accepting LF and CRLF endings.
func SplitLines(src string) []string {
	return strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
}
