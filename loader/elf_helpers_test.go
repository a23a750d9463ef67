package loader_test

import (
	"encoding/binary"
	"os"

	. "github.com/onsi/gomega"
)

const (
	machineRISCV = 243
	machineX8664 = 62

	pfX = 0x1
	pfW = 0x2
	pfR = 0x4
)

type segment struct {
	vaddr uint32
	flags uint32
	data  []byte
	memsz uint32
	// filesz overrides the recorded file size when non-zero.
	filesz uint32
}

// writeELF32 writes a little-endian ELF32 executable with one PT_LOAD
// program header per segment.
func writeELF32(path string, machine uint16, entry uint32, segs ...segment) {
	const (
		ehsize    = 52
		phentsize = 32
	)

	header := make([]byte, ehsize)
	copy(header, []byte{0x7f, 'E', 'L', 'F', 1, 1, 1})
	binary.LittleEndian.PutUint16(header[16:18], 2) // executable
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], entry)
	binary.LittleEndian.PutUint32(header[28:32], ehsize)
	binary.LittleEndian.PutUint16(header[40:42], ehsize)
	binary.LittleEndian.PutUint16(header[42:44], phentsize)
	binary.LittleEndian.PutUint16(header[44:46], uint16(len(segs)))

	phdrs := make([]byte, phentsize*len(segs))
	offset := uint32(ehsize + len(phdrs))

	var body []byte

	for i, s := range segs {
		memsz := s.memsz
		if memsz == 0 {
			memsz = uint32(len(s.data))
		}

		ph := phdrs[i*phentsize:]
		binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
		binary.LittleEndian.PutUint32(ph[4:8], offset)
		binary.LittleEndian.PutUint32(ph[8:12], s.vaddr)
		binary.LittleEndian.PutUint32(ph[12:16], s.vaddr)
		filesz := s.filesz
		if filesz == 0 {
			filesz = uint32(len(s.data))
		}

		binary.LittleEndian.PutUint32(ph[16:20], filesz)
		binary.LittleEndian.PutUint32(ph[20:24], memsz)
		binary.LittleEndian.PutUint32(ph[24:28], s.flags)
		binary.LittleEndian.PutUint32(ph[28:32], 4)

		offset += uint32(len(s.data))
		body = append(body, s.data...)
	}

	out := append(append(header, phdrs...), body...)
	Expect(os.WriteFile(path, out, 0644)).To(Succeed())
}

// writeELF64 writes a minimal ELF64 header with no program headers.
func writeELF64(path string) {
	header := make([]byte, 64)
	copy(header, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	binary.LittleEndian.PutUint16(header[16:18], 2)
	binary.LittleEndian.PutUint16(header[18:20], machineRISCV)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint64(header[32:40], 64)
	binary.LittleEndian.PutUint16(header[52:54], 64)
	binary.LittleEndian.PutUint16(header[54:56], 56)

	Expect(os.WriteFile(path, header, 0644)).To(Succeed())
}

func le(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}
