package loader

import (
	"debug/elf"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"tlog.app/go/errors"

	"github.com/sarchlab/rv32sim/emu"
)

// ELF errors.
var (
	ErrNotRV32       = errors.New("not an RV32 ELF file")
	ErrBadEntryPoint = errors.New("entry point is not the start of text")
	ErrNoText        = errors.New("no executable segment")
	ErrTextGap       = errors.New("executable segments are not contiguous")
	ErrSegmentBounds = errors.New("segment extends past end of file")
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the byte address where this segment is loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// LoadELF reads an RV32 little-endian executable. Executable PT_LOAD
// segments, in address order, form the instruction memory and must start at
// the entry point. Other PT_LOAD segments form the data image, with the
// lowest one at word 0.
func LoadELF(path string) (*Program, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ELF file")
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat ELF file")
	}

	f, err := elf.NewFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ELF file")
	}

	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_RISCV || f.Data != elf.ELFDATA2LSB {
		return nil, errors.Wrap(ErrNotRV32, "class %v machine %v data %v", f.Class, f.Machine, f.Data)
	}

	prog := &Program{
		Format:     FormatELF,
		EntryPoint: uint32(f.Entry),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr, uint64(info.Size()))
		if err != nil {
			return nil, err
		}

		prog.Segments = append(prog.Segments, seg)
	}

	sort.Slice(prog.Segments, func(i, j int) bool {
		return prog.Segments[i].VirtAddr < prog.Segments[j].VirtAddr
	})

	var (
		text     []uint32
		textBase uint32
		textEnd  uint32
		dataBase uint32
		haveData bool
	)

	prog.Data = map[int]int32{}

	for _, seg := range prog.Segments {
		if seg.Flags&SegmentFlagExecute != 0 {
			if text == nil {
				textBase, textEnd = seg.VirtAddr, seg.VirtAddr
			}
			if seg.VirtAddr != textEnd {
				return nil, errors.Wrap(ErrTextGap, "segment at %#x, previous text ends at %#x", seg.VirtAddr, textEnd)
			}
			segWords := words(seg.Data)
			text = append(text, segWords...)
			textEnd += uint32(4 * len(segWords))
			continue
		}

		if !haveData {
			dataBase, haveData = seg.VirtAddr, true
		}

		for i, w := range words(seg.Data) {
			if w != 0 {
				prog.Data[int((seg.VirtAddr-dataBase)/4)+i] = int32(w)
			}
		}
	}

	if text == nil {
		return nil, errors.Wrap(ErrNoText, "%v", path)
	}

	if prog.EntryPoint != textBase {
		return nil, errors.Wrap(ErrBadEntryPoint, "entry %#x text %#x", prog.EntryPoint, textBase)
	}

	prog.Instructions = emu.NewInstructionMemory(text)

	return prog, nil
}

func readSegment(phdr *elf.Prog, fileSize uint64) (Segment, error) {
	if phdr.Off > fileSize || phdr.Filesz > fileSize-phdr.Off {
		return Segment{}, errors.Wrap(ErrSegmentBounds, "segment at 0x%x: offset %d size %d, file %d bytes",
			phdr.Vaddr, phdr.Off, phdr.Filesz, fileSize)
	}

	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, errors.Wrap(err, "failed to read segment at 0x%x", phdr.Vaddr)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, errors.New("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Vaddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		VirtAddr: uint32(phdr.Vaddr),
		Data:     data,
		MemSize:  uint32(phdr.Memsz),
		Flags:    flags,
	}, nil
}

// words splits little-endian bytes into words, zero-padding a short tail.
func words(data []byte) []uint32 {
	out := make([]uint32, 0, (len(data)+3)/4)

	for i := 0; i < len(data); i += 4 {
		var b [4]byte
		copy(b[:], data[i:])
		out = append(out, binary.LittleEndian.Uint32(b[:]))
	}

	return out
}
