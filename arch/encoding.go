package arch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Decoding errors.
var (
	ErrTruncated = errors.New("truncated instruction")
	ErrOpcode    = errors.New("unknown opcode")
	ErrModes     = errors.New("invalid addressing modes")
)

// MaxArgBytes is the largest number of argument bytes an instruction carries.
const MaxArgBytes = 5

// Instruction is the binary form of a single instruction.
type Instruction struct {
	Opcode  int    // Effective opcode, EXT prefixes included.
	NoCache bool   // Bypass the cache for operand accesses.
	R       ModeR  // Destination mode; RNone for fewer than two operands.
	X       ModeX  // Source mode; XNone for zero operands.
	Args    []byte // Argument bytes: admx bytes followed by admr bytes.
}

// ValidModes reports whether the addressing modes are legal for the
// given instruction.
func ValidModes(info Info, r ModeR, x ModeX) bool {
	switch info.Argc {
	case 0:
		return r == RNone && x == XNone
	case 1:
		if r != RNone || !x.Valid() {
			return false
		}
		if info.Class == WriteSrc || info.Class == Pop {
			return x.Category() != ImmediateOperand
		}
		return true
	case 2:
		if !r.Valid() || !x.Valid() {
			return false
		}
		if info.Name == "LEA" {
			return x.Category() == MemoryOperand
		}
		return true
	}
	return false
}

// Size returns the encoded size of the instruction in bytes.
func (i *Instruction) Size() int {
	n := 1 + i.Opcode/ExtStride
	if Argc(i.Opcode) > 0 {
		n++
	}
	return n + len(i.Args)
}

// Encode appends the binary form of the instruction to p.
func (i *Instruction) Encode(p []byte) ([]byte, error) {
	info, ok := Lookup(i.Opcode)
	if !ok {
		return p, errors.Wrapf(ErrOpcode, "%d", i.Opcode)
	}

	if !ValidModes(info, i.R, i.X) {
		return p, errors.Wrapf(ErrModes, "%s %d/%d", info.Name, i.R, i.X)
	}

	if len(i.Args) != i.X.Bytes()+i.R.Bytes() {
		return p, errors.Wrapf(ErrModes, "%s: want %d argument bytes; have %d",
			info.Name, i.X.Bytes()+i.R.Bytes(), len(i.Args))
	}

	for n := i.Opcode / ExtStride; n > 0; n-- {
		p = append(p, EXT)
	}

	b := byte(i.Opcode % ExtStride)
	if i.NoCache {
		b |= NoCache
	}
	p = append(p, b)

	if info.Argc > 0 {
		p = append(p, JoinModes(i.R, i.X))
	}

	return append(p, i.Args...), nil
}

// Decode decodes the instruction at the start of p.
// Returns the number of bytes consumed.
func (i *Instruction) Decode(p []byte) (int, error) {
	var n int
	i.Opcode = 0

	for {
		if n >= len(p) {
			return n, ErrTruncated
		}

		b := p[n]
		n++

		if b&^NoCache == EXT {
			i.Opcode += ExtStride
			continue
		}

		i.Opcode += int(b &^ NoCache)
		i.NoCache = b&NoCache != 0
		break
	}

	info, ok := Lookup(i.Opcode)
	if !ok {
		return n, errors.Wrapf(ErrOpcode, "%d", i.Opcode)
	}

	i.R, i.X = RNone, XNone
	i.Args = nil

	if info.Argc > 0 {
		if n >= len(p) {
			return n, ErrTruncated
		}
		i.R, i.X = SplitModes(p[n])
		n++
	}

	if !ValidModes(info, i.R, i.X) {
		return n, errors.Wrapf(ErrModes, "%s %d/%d", info.Name, i.R, i.X)
	}

	size := i.X.Bytes() + i.R.Bytes()
	if n+size > len(p) {
		return len(p), ErrTruncated
	}

	i.Args = append([]byte(nil), p[n:n+size]...)
	return n + size, nil
}

// String returns the instruction in assembly syntax.
func (i *Instruction) String() string {
	name, ok := Name(i.Opcode)
	if !ok {
		return fmt.Sprintf("<%02x>", i.Opcode)
	}

	var sb strings.Builder
	sb.WriteString(name)
	if i.NoCache {
		sb.WriteString(".nc")
	}

	xb := i.X.Bytes()
	if len(i.Args) < xb+i.R.Bytes() {
		return sb.String()
	}

	switch Argc(i.Opcode) {
	case 1:
		sb.WriteString(" " + i.X.Format(i.Args[:xb]))
	case 2:
		sb.WriteString(" " + i.R.Format(i.Args[xb:]))
		sb.WriteString(", " + i.X.Format(i.Args[:xb]))
	}

	return sb.String()
}
