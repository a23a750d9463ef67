package insts

import (
	"strings"

	"tlog.app/go/errors"
)

// Bit-field errors.
var (
	ErrMalformedBits  = errors.New("malformed bit string")
	ErrImmediateRange = errors.New("immediate out of range")
)

// MaxBits is the widest bit string the codec handles.
const MaxBits = 32

func checkBits(bits string) error {
	if len(bits) == 0 || len(bits) > MaxBits {
		return errors.Wrap(ErrMalformedBits, "width %d", len(bits))
	}

	for i := 0; i < len(bits); i++ {
		if bits[i] != '0' && bits[i] != '1' {
			return errors.Wrap(ErrMalformedBits, "%q at %d", bits[i], i)
		}
	}

	return nil
}

// ToUnsigned interprets a '0'/'1' string as an unsigned binary number.
func ToUnsigned(bits string) (uint32, error) {
	if err := checkBits(bits); err != nil {
		return 0, err
	}

	var v uint32
	for i := 0; i < len(bits); i++ {
		v = v<<1 | uint32(bits[i]-'0')
	}

	return v, nil
}

// ToSigned interprets a '0'/'1' string as a two's-complement number whose
// width is the string length.
func ToSigned(bits string) (int32, error) {
	u, err := ToUnsigned(bits)
	if err != nil {
		return 0, err
	}

	if bits[0] == '0' {
		return int32(u), nil
	}

	// Negative: -(complement + 1), computed within the string's width.
	mask := uint32(1)<<uint(len(bits)) - 1
	if len(bits) == MaxBits {
		mask = ^uint32(0)
	}

	return -int32((^u & mask) + 1), nil
}

// ToBits renders value as a width-character two's-complement string.
// Values that do not fit width signed bits fail with ErrImmediateRange.
// A width of 32 also accepts the full unsigned 32-bit range so machine
// words can be printed directly.
func ToBits(value int64, width int) (string, error) {
	if width <= 0 || width > MaxBits {
		return "", errors.Wrap(ErrMalformedBits, "width %d", width)
	}

	fits := FitsSigned(value, width)
	if width == MaxBits {
		fits = fits || FitsUnsigned(value, width)
	}

	if !fits {
		return "", errors.Wrap(ErrImmediateRange, "%d in %d bits", value, width)
	}

	var b strings.Builder
	b.Grow(width)

	for i := width - 1; i >= 0; i-- {
		if (uint64(value)>>uint(i))&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}

	return b.String(), nil
}

// SignExtend replicates the sign bit of bits to 32 bits and returns the
// signed result.
func SignExtend(bits string) (int32, error) {
	u, err := ToUnsigned(bits)
	if err != nil {
		return 0, err
	}

	return SignExtendValue(u, uint(len(bits))), nil
}

// SignExtendValue sign-extends the low width bits of v.
func SignExtendValue(v uint32, width uint) int32 {
	if width == 0 || width >= MaxBits {
		return int32(v)
	}

	shift := MaxBits - width

	return int32(v<<shift) >> shift
}

// FitsSigned reports whether v is representable in width two's-complement
// bits.
func FitsSigned(v int64, width int) bool {
	lo := -(int64(1) << uint(width-1))
	hi := int64(1)<<uint(width-1) - 1

	return v >= lo && v <= hi
}

// FitsUnsigned reports whether v is representable in width unsigned bits.
func FitsUnsigned(v int64, width int) bool {
	return v >= 0 && v <= int64(1)<<uint(width)-1
}

// Field extracts bits [hi:lo] of word.
func Field(word uint32, hi, lo uint) uint32 {
	return (word >> lo) & (uint32(1)<<(hi-lo+1) - 1)
}
