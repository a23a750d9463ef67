// Package loader reads RV32I programs from assembly source, bit-string text
// or RV32 ELF executables.
package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/rv32sim/asm"
	"github.com/sarchlab/rv32sim/emu"
)

// ErrUnknownFormat is returned when the file type cannot be determined.
var ErrUnknownFormat = errors.New("unknown program format")

// Format identifies how a program was stored.
type Format int

// Program formats.
const (
	FormatUnknown Format = iota
	FormatAssembly
	FormatBits
	FormatELF
)

func (f Format) String() string {
	switch f {
	case FormatAssembly:
		return "assembly"
	case FormatBits:
		return "bits"
	case FormatELF:
		return "elf"
	default:
		return "unknown"
	}
}

// Program is a loaded program ready to be run.
type Program struct {
	Format Format

	// Instructions holds the program text. Execution starts at index 0.
	Instructions *emu.InstructionMemory

	// Data is the initial data memory image, keyed by word address.
	Data map[int]int32

	// Labels is the label table of an assembled program.
	Labels asm.LabelTable

	// EntryPoint and Segments are set for ELF programs.
	EntryPoint uint32
	Segments   []Segment
}

var elfMagic = []byte("\x7fELF")

// Load reads the program at path. .s and .asm files are assembled; .txt,
// .mc and .bits files hold one 32-character bit string per line. Other
// files must be RV32 ELF executables.
func Load(path string) (*Program, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read source")
		}
		return LoadAssembly(string(src))

	case ".txt", ".mc", ".bits":
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read bits")
		}
		return LoadBits(string(text)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open program")
	}

	magic := make([]byte, len(elfMagic))
	_, err = f.Read(magic)
	_ = f.Close()

	if err != nil || !bytes.Equal(magic, elfMagic) {
		return nil, errors.Wrap(ErrUnknownFormat, "%v", path)
	}

	return LoadELF(path)
}

// LoadAssembly assembles source text.
func LoadAssembly(src string) (*Program, error) {
	a := asm.New()

	words, err := asm.Words(a.AssembleAll(asm.SplitLines(src)))
	if err != nil {
		return nil, errors.Wrap(err, "assemble")
	}

	tlog.V("loader").Printw("assembled", "words", len(words), "labels", len(a.Labels()))

	return &Program{
		Format:       FormatAssembly,
		Instructions: emu.NewInstructionMemory(words),
		Labels:       a.Labels(),
	}, nil
}

// LoadBits parses bit-string text. Blank lines are skipped and malformed
// lines become faults that stop the pipeline when decoded.
func LoadBits(text string) *Program {
	return &Program{
		Format:       FormatBits,
		Instructions: emu.ParseInstructionMemory(asm.SplitLines(text)),
	}
}
