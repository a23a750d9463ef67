package emu

import (
	"github.com/bits-and-blooms/bitset"
	"tlog.app/go/errors"
)

// DefaultMemoryWords is the default data memory size in words.
const DefaultMemoryWords = 1024

// ErrAddressOutOfRange is returned for accesses outside data memory.
var ErrAddressOutOfRange = errors.New("address out of range")

// Memory is a word-addressed data memory of signed 32-bit words.
// Addresses index words, not bytes.
type Memory struct {
	words   []int32
	written *bitset.BitSet
}

// NewMemory creates a zeroed memory of the given number of words.
func NewMemory(words int) *Memory {
	if words <= 0 {
		words = DefaultMemoryWords
	}

	return &Memory{
		words:   make([]int32, words),
		written: bitset.New(uint(words)),
	}
}

// Size returns the number of words.
func (m *Memory) Size() int {
	return len(m.words)
}

func (m *Memory) check(addr int64) error {
	if addr < 0 || addr >= int64(len(m.words)) {
		return errors.Wrap(ErrAddressOutOfRange, "word %d of %d", addr, len(m.words))
	}
	return nil
}

// Read returns the word at addr.
func (m *Memory) Read(addr int64) (int32, error) {
	if err := m.check(addr); err != nil {
		return 0, err
	}
	return m.words[addr], nil
}

// Write stores value at addr and marks the word as written.
func (m *Memory) Write(addr int64, value int32) error {
	if err := m.check(addr); err != nil {
		return err
	}

	m.words[addr] = value
	m.written.Set(uint(addr))

	return nil
}

// Load initializes words from a sparse image. Initial contents are not
// marked as written.
func (m *Memory) Load(image map[int]int32) error {
	for addr, v := range image {
		if err := m.check(int64(addr)); err != nil {
			return err
		}

		m.words[addr] = v
	}

	return nil
}

// Written reports whether a store has touched addr.
func (m *Memory) Written(addr int) bool {
	return addr >= 0 && m.written.Test(uint(addr))
}

// WrittenAddrs returns the addresses touched by stores in ascending order.
func (m *Memory) WrittenAddrs() []int {
	addrs := make([]int, 0, m.written.Count())
	for i, ok := m.written.NextSet(0); ok; i, ok = m.written.NextSet(i + 1) {
		addrs = append(addrs, int(i))
	}
	return addrs
}

// Snapshot returns a copy of all words.
func (m *Memory) Snapshot() []int32 {
	s := make([]int32, len(m.words))
	copy(s, m.words)
	return s
}
