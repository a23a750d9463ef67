package emu

import "tlog.app/go/errors"

// ErrInvalidWidth is returned for an unknown load/store funct3.
var ErrInvalidWidth = errors.New("invalid load/store width")

// Load/store widths by funct3.
const (
	widthB  = 0b000
	widthH  = 0b001
	widthW  = 0b010
	widthBU = 0b100
	widthHU = 0b101
)

// LoadValue extracts the loaded value from a memory word. Memory is word
// addressed, so byte and half loads read the low byte or half of the word.
func LoadValue(funct3 uint8, word int32) (int32, error) {
	switch funct3 {
	case widthB:
		return int32(int8(word)), nil
	case widthH:
		return int32(int16(word)), nil
	case widthW:
		return word, nil
	case widthBU:
		return int32(uint8(word)), nil
	case widthHU:
		return int32(uint16(word)), nil
	default:
		return 0, errors.Wrap(ErrInvalidWidth, "load funct3 %03b", funct3)
	}
}

// StoreValue merges value into old according to the store width. Byte and
// half stores replace the low byte or half of the word.
func StoreValue(funct3 uint8, old, value int32) (int32, error) {
	switch funct3 {
	case widthB:
		return int32(uint32(old)&^0xFF | uint32(value)&0xFF), nil
	case widthH:
		return int32(uint32(old)&^0xFFFF | uint32(value)&0xFFFF), nil
	case widthW:
		return value, nil
	default:
		return 0, errors.Wrap(ErrInvalidWidth, "store funct3 %03b", funct3)
	}
}

// LoadStoreUnit performs data memory accesses.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a LoadStoreUnit connected to memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{memory: memory}
}

// Load reads the word at addr and applies the load width.
func (lsu *LoadStoreUnit) Load(funct3 uint8, addr int32) (int32, error) {
	word, err := lsu.memory.Read(int64(addr))
	if err != nil {
		return 0, err
	}
	return LoadValue(funct3, word)
}

// Store writes value at addr with the store width.
func (lsu *LoadStoreUnit) Store(funct3 uint8, addr, value int32) error {
	old, err := lsu.memory.Read(int64(addr))
	if err != nil {
		return err
	}

	v, err := StoreValue(funct3, old, value)
	if err != nil {
		return err
	}

	return lsu.memory.Write(int64(addr), v)
}
