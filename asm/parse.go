package asm

import (
	"strconv"
	"strings"
	"unicode"

	"tlog.app/go/errors"
)

// line is one source line split into its parts.
type line struct {
	label string
	op    string
	args  []string
}

var commentMarkers = []string{"#", ";", "//"}

func stripComment(s string) string {
	for _, m := range commentMarkers {
		if i := strings.Index(s, m); i >= 0 {
			s = s[:i]
		}
	}

	return s
}

func parseLine(raw string) (l line) {
	code := strings.TrimSpace(stripComment(raw))

	if name, rest, ok := strings.Cut(code, ":"); ok && isIdent(strings.TrimSpace(name)) {
		l.label = strings.TrimSpace(name)
		code = rest
	}

	fields := strings.FieldsFunc(code, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return l
	}

	l.op = fields[0]
	l.args = fields[1:]

	return l
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_' || r == '.' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}

	return true
}

var abiNames = map[string]uint8{
	"ZERO": 0, "RA": 1, "SP": 2, "GP": 3, "TP": 4,
	"T0": 5, "T1": 6, "T2": 7,
	"S0": 8, "FP": 8, "S1": 9,
	"A0": 10, "A1": 11, "A2": 12, "A3": 13, "A4": 14, "A5": 15, "A6": 16, "A7": 17,
	"S2": 18, "S3": 19, "S4": 20, "S5": 21, "S6": 22, "S7": 23, "S8": 24, "S9": 25,
	"S10": 26, "S11": 27,
	"T3": 28, "T4": 29, "T5": 30, "T6": 31,
}

func parseRegister(s string) (uint8, error) {
	u := strings.ToUpper(s)

	if r, ok := abiNames[u]; ok {
		return r, nil
	}

	if len(u) >= 2 && u[0] == 'X' {
		n, err := strconv.ParseUint(u[1:], 10, 8)
		if err == nil && n < 32 {
			return uint8(n), nil
		}
	}

	return 0, errors.Wrap(ErrInvalidOperand, "bad register %q", s)
}

func parseImmediate(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidOperand, "bad immediate %q", s)
	}

	return v, nil
}

// parseMemory splits an OFFSET(BASE) or OFFSET[BASE] operand. A missing
// offset means zero.
func parseMemory(s string) (int64, uint8, error) {
	open := strings.IndexAny(s, "([")
	if open < 0 {
		return 0, 0, errors.Wrap(ErrInvalidOperand, "expected offset(base), got %q", s)
	}

	closer := byte(')')
	if s[open] == '[' {
		closer = ']'
	}

	if s[len(s)-1] != closer {
		return 0, 0, errors.Wrap(ErrInvalidOperand, "unclosed bracket in %q", s)
	}

	var off int64

	if open > 0 {
		var err error

		off, err = parseImmediate(s[:open])
		if err != nil {
			return 0, 0, err
		}
	}

	base, err := parseRegister(s[open+1 : len(s)-1])
	if err != nil {
		return 0, 0, err
	}

	return off, base, nil
}
