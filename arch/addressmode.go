package arch

import "fmt"

// Category groups addressing modes by what the operand refers to.
type Category byte

// Known categories.
const (
	Invalid Category = iota
	RegisterOperand
	ImmediateOperand
	MemoryOperand
)

// ModeR is a reduced addressing mode (3 bits). It selects the
// destination of two-operand instructions.
type ModeR byte

// Known reduced addressing modes.
const (
	RNone  ModeR = iota // not present
	RR0                 // r0
	RR1                 // r1
	RR2                 // r2
	RR3                 // r3
	RSP                 // sp
	RInd16              // [imm16]
	RIndR0              // [r0]

	ModeRCount
)

// ModeX is an extended addressing mode (5 bits). It selects the
// source of two-operand instructions and the sole operand of
// one-operand instructions.
type ModeX byte

// Known extended addressing modes.
const (
	XNone  ModeX = iota // not present
	XR0                 // r0
	XR1                 // r1
	XR2                 // r2
	XR3                 // r3
	XSP                 // sp
	XPC                 // pc
	XImm16              // $imm16
	XInd16              // [imm16]
	XIndR0              // [r0]
	XIndR1              // [r1]
	XIndR2              // [r2]
	XIndR3              // [r3]
	XIndSP              // [sp]
	XOffR0              // [r0 + imm16]
	XOffR1              // [r1 + imm16]
	XOffR2              // [r2 + imm16]
	XOffR3              // [r3 + imm16]
	XOffSP              // [sp + imm16]
	XScaR0              // [imm16 + r0 * imm8]
	XScaR1              // [imm16 + r1 * imm8]
	XScaR2              // [imm16 + r2 * imm8]
	XScaR3              // [imm16 + r3 * imm8]
	XScaSP              // [imm16 + sp * imm8]

	ModeXCount
)

// Addressing byte layout.
const (
	ModeRBits = 3
	ModeRMask = 1<<ModeRBits - 1
	ModeXMask = 0x1f
)

// SplitModes splits an addressing byte into its reduced and extended modes.
func SplitModes(b byte) (ModeR, ModeX) {
	return ModeR(b & ModeRMask), ModeX(b >> ModeRBits)
}

// JoinModes builds an addressing byte from its reduced and extended modes.
func JoinModes(r ModeR, x ModeX) byte {
	return byte(r)&ModeRMask | (byte(x)&ModeXMask)<<ModeRBits
}

type modeInfo struct {
	syntax   string
	bytes    int
	category Category
	reg      Register // Base or direct register; -1 if none.
}

var modesR = [ModeRCount]modeInfo{
	RNone:  {"", 0, Invalid, -1},
	RR0:    {"r0", 0, RegisterOperand, R0},
	RR1:    {"r1", 0, RegisterOperand, R1},
	RR2:    {"r2", 0, RegisterOperand, R2},
	RR3:    {"r3", 0, RegisterOperand, R3},
	RSP:    {"sp", 0, RegisterOperand, SP},
	RInd16: {"[%04x]", 2, MemoryOperand, -1},
	RIndR0: {"[r0]", 0, MemoryOperand, R0},
}

var modesX = [ModeXCount]modeInfo{
	XNone:  {"", 0, Invalid, -1},
	XR0:    {"r0", 0, RegisterOperand, R0},
	XR1:    {"r1", 0, RegisterOperand, R1},
	XR2:    {"r2", 0, RegisterOperand, R2},
	XR3:    {"r3", 0, RegisterOperand, R3},
	XSP:    {"sp", 0, RegisterOperand, SP},
	XPC:    {"pc", 0, RegisterOperand, PC},
	XImm16: {"$%04x", 2, ImmediateOperand, -1},
	XInd16: {"[%04x]", 2, MemoryOperand, -1},
	XIndR0: {"[r0]", 0, MemoryOperand, R0},
	XIndR1: {"[r1]", 0, MemoryOperand, R1},
	XIndR2: {"[r2]", 0, MemoryOperand, R2},
	XIndR3: {"[r3]", 0, MemoryOperand, R3},
	XIndSP: {"[sp]", 0, MemoryOperand, SP},
	XOffR0: {"[r0+%04x]", 2, MemoryOperand, R0},
	XOffR1: {"[r1+%04x]", 2, MemoryOperand, R1},
	XOffR2: {"[r2+%04x]", 2, MemoryOperand, R2},
	XOffR3: {"[r3+%04x]", 2, MemoryOperand, R3},
	XOffSP: {"[sp+%04x]", 2, MemoryOperand, SP},
	XScaR0: {"[%04x+r0*%d]", 3, MemoryOperand, R0},
	XScaR1: {"[%04x+r1*%d]", 3, MemoryOperand, R1},
	XScaR2: {"[%04x+r2*%d]", 3, MemoryOperand, R2},
	XScaR3: {"[%04x+r3*%d]", 3, MemoryOperand, R3},
	XScaSP: {"[%04x+sp*%d]", 3, MemoryOperand, SP},
}

// Valid returns true if m is a usable reduced mode.
func (m ModeR) Valid() bool { return m > RNone && m < ModeRCount }

// Bytes returns the number of argument bytes the mode consumes.
func (m ModeR) Bytes() int {
	if m >= ModeRCount {
		return 0
	}
	return modesR[m].bytes
}

// Category returns the operand category for the mode.
func (m ModeR) Category() Category {
	if m >= ModeRCount {
		return Invalid
	}
	return modesR[m].category
}

// Register returns the register the mode uses directly or as a base.
// Returns -1 if the mode uses none.
func (m ModeR) Register() Register {
	if m >= ModeRCount {
		return -1
	}
	return modesR[m].reg
}

// Format renders the operand in assembly syntax, given its argument bytes.
func (m ModeR) Format(args []byte) string {
	if m >= ModeRCount {
		return fmt.Sprintf("<admr %d>", m)
	}
	return formatMode(modesR[m], args)
}

// Valid returns true if m is a usable extended mode.
func (m ModeX) Valid() bool { return m > XNone && m < ModeXCount }

// Bytes returns the number of argument bytes the mode consumes.
func (m ModeX) Bytes() int {
	if m >= ModeXCount {
		return 0
	}
	return modesX[m].bytes
}

// Category returns the operand category for the mode.
func (m ModeX) Category() Category {
	if m >= ModeXCount {
		return Invalid
	}
	return modesX[m].category
}

// Register returns the register the mode uses directly or as a base.
// Returns -1 if the mode uses none.
func (m ModeX) Register() Register {
	if m >= ModeXCount {
		return -1
	}
	return modesX[m].reg
}

// Scaled returns true for the [imm16 + reg * imm8] modes.
func (m ModeX) Scaled() bool { return m >= XScaR0 && m <= XScaSP }

// Offset returns true for the [reg + imm16] modes.
func (m ModeX) Offset() bool { return m >= XOffR0 && m <= XOffSP }

// Format renders the operand in assembly syntax, given its argument bytes.
func (m ModeX) Format(args []byte) string {
	if m >= ModeXCount {
		return fmt.Sprintf("<admx %d>", m)
	}
	return formatMode(modesX[m], args)
}

func formatMode(mi modeInfo, args []byte) string {
	switch mi.bytes {
	case 2:
		return fmt.Sprintf(mi.syntax, Word(args))
	case 3:
		return fmt.Sprintf(mi.syntax, Word(args), args[2])
	}
	return mi.syntax
}

// Word decodes a little endian 16-bit value from the first two bytes of p.
func Word(p []byte) uint16 {
	return uint16(p[0]) | uint16(p[1])<<8
}
