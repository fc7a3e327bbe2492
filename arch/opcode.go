// Package arch defines the system's instruction set along with
// some related helper functions.
package arch

import "strings"

// Known opcodes.
const (
	NOP = iota
	HLT
	MOV
	MOVB
	ADD
	ADC
	SUB
	SBB
	MUL
	DIV
	MOD
	SDIV
	AND
	OR
	XOR
	SHL
	SHR
	SAR
	ROL
	ROR
	CMP
	TST
	INC
	DEC
	NEG
	NOT
	SWAP
	PUSH
	POP
	PUSHSR
	POPSR
	JMP
	JZ
	JNZ
	JL
	JGE
	JUL
	JUGE
	JFL
	JBL
	JO
	JNO
	CALL
	RET
	RETI
	INT
	DI
	EI
	SETF
	CLRF
	INVC
	FADD
	FSUB
	FMUL
	FDIV
	BADD
	BSUB
	BMUL
	BDIV
	ITOF
	FTOI
	LEA
	MOVZ
	MOVNZ

	// OpcodeCount is the size of the instruction table.
	OpcodeCount
)

// EXT is the opcode index of the extension prefix. Every EXT byte in front of
// an opcode byte adds ExtStride to the effective opcode.
const (
	EXT       = 0x7f
	ExtStride = 0x80
	NoCache   = 0x80 // Opcode byte modifier: bypass the cache for operand accesses.
)

// Class determines what the pipeline does after an instruction executed.
type Class byte

// Known instruction classes.
const (
	Control   Class = iota // Flags or pc only; straight back to fetch.
	WriteDest              // Result goes to the admr operand.
	WriteSrc               // Result goes back to the admx operand.
	Push                   // Result is pushed onto the stack.
	Pop                    // Stack top is popped into the admx operand or pc.
	PopSR                  // Stack top is popped into the status register.
)

// Info describes a single instruction.
type Info struct {
	Name     string
	Argc     int     // Number of operands: 0, 1 (admx) or 2 (admr, admx).
	Class    Class   // Write-back behaviour.
	Width    Width   // Operand width.
	ReadSrc  bool    // Does the instruction read the admx operand value?
	ReadDest bool    // Does the instruction read the admr operand value?
	Feature  Feature // Capability required to execute the instruction.
}

var table = [OpcodeCount]Info{
	NOP:    {"NOP", 0, Control, U16, false, false, Base},
	HLT:    {"HLT", 0, Control, U16, false, false, Base},
	MOV:    {"MOV", 2, WriteDest, U16, true, false, Base},
	MOVB:   {"MOVB", 2, WriteDest, U8, true, false, Base},
	ADD:    {"ADD", 2, WriteDest, U16, true, true, Base},
	ADC:    {"ADC", 2, WriteDest, U16, true, true, Base},
	SUB:    {"SUB", 2, WriteDest, U16, true, true, Base},
	SBB:    {"SBB", 2, WriteDest, U16, true, true, Base},
	MUL:    {"MUL", 2, WriteDest, U16, true, true, Mul},
	DIV:    {"DIV", 2, WriteDest, U16, true, true, Mul},
	MOD:    {"MOD", 2, WriteDest, U16, true, true, Mul},
	SDIV:   {"SDIV", 2, WriteDest, U16, true, true, Mul},
	AND:    {"AND", 2, WriteDest, U16, true, true, Base},
	OR:     {"OR", 2, WriteDest, U16, true, true, Base},
	XOR:    {"XOR", 2, WriteDest, U16, true, true, Base},
	SHL:    {"SHL", 2, WriteDest, U16, true, true, Base},
	SHR:    {"SHR", 2, WriteDest, U16, true, true, Base},
	SAR:    {"SAR", 2, WriteDest, U16, true, true, Base},
	ROL:    {"ROL", 2, WriteDest, U16, true, true, Base},
	ROR:    {"ROR", 2, WriteDest, U16, true, true, Base},
	CMP:    {"CMP", 2, Control, U16, true, true, Base},
	TST:    {"TST", 2, Control, U16, true, true, Base},
	INC:    {"INC", 1, WriteSrc, U16, true, false, Base},
	DEC:    {"DEC", 1, WriteSrc, U16, true, false, Base},
	NEG:    {"NEG", 1, WriteSrc, U16, true, false, Base},
	NOT:    {"NOT", 1, WriteSrc, U16, true, false, Base},
	SWAP:   {"SWAP", 1, WriteSrc, U16, true, false, Base},
	PUSH:   {"PUSH", 1, Push, U16, true, false, Base},
	POP:    {"POP", 1, Pop, U16, false, false, Base},
	PUSHSR: {"PUSHSR", 0, Push, U16, false, false, Base},
	POPSR:  {"POPSR", 0, PopSR, U16, false, false, Base},
	JMP:    {"JMP", 1, Control, U16, true, false, Base},
	JZ:     {"JZ", 1, Control, U16, true, false, Base},
	JNZ:    {"JNZ", 1, Control, U16, true, false, Base},
	JL:     {"JL", 1, Control, U16, true, false, Base},
	JGE:    {"JGE", 1, Control, U16, true, false, Base},
	JUL:    {"JUL", 1, Control, U16, true, false, Base},
	JUGE:   {"JUGE", 1, Control, U16, true, false, Base},
	JFL:    {"JFL", 1, Control, U16, true, false, Float16},
	JBL:    {"JBL", 1, Control, U16, true, false, BFloat16},
	JO:     {"JO", 1, Control, U16, true, false, Base},
	JNO:    {"JNO", 1, Control, U16, true, false, Base},
	CALL:   {"CALL", 1, Push, U16, true, false, Base},
	RET:    {"RET", 0, Pop, U16, false, false, Base},
	RETI:   {"RETI", 0, Pop, U16, false, false, Base},
	INT:    {"INT", 1, Control, U16, true, false, Base},
	DI:     {"DI", 0, Control, U16, false, false, Base},
	EI:     {"EI", 0, Control, U16, false, false, Base},
	SETF:   {"SETF", 1, Control, U16, true, false, Base},
	CLRF:   {"CLRF", 1, Control, U16, true, false, Base},
	INVC:   {"INVC", 0, Control, U16, false, false, Cache},
	FADD:   {"FADD", 2, WriteDest, U16, true, true, Float16},
	FSUB:   {"FSUB", 2, WriteDest, U16, true, true, Float16},
	FMUL:   {"FMUL", 2, WriteDest, U16, true, true, Float16},
	FDIV:   {"FDIV", 2, WriteDest, U16, true, true, Float16},
	BADD:   {"BADD", 2, WriteDest, U16, true, true, BFloat16},
	BSUB:   {"BSUB", 2, WriteDest, U16, true, true, BFloat16},
	BMUL:   {"BMUL", 2, WriteDest, U16, true, true, BFloat16},
	BDIV:   {"BDIV", 2, WriteDest, U16, true, true, BFloat16},
	ITOF:   {"ITOF", 1, WriteSrc, U16, true, false, Float16},
	FTOI:   {"FTOI", 1, WriteSrc, U16, true, false, Float16},
	LEA:    {"LEA", 2, WriteDest, U16, false, false, Base},
	MOVZ:   {"MOVZ", 2, WriteDest, U16, true, false, Base},
	MOVNZ:  {"MOVNZ", 2, WriteDest, U16, true, false, Base},
}

// Lookup returns the table entry for the given opcode.
// Returns false if the opcode is not recognized.
func Lookup(opcode int) (Info, bool) {
	if opcode < 0 || opcode >= OpcodeCount {
		return Info{}, false
	}
	return table[opcode], true
}

// Opcode returns the opcode for the given instruction name.
// Returns false if the name is not recognized.
func Opcode(name string) (int, bool) {
	name = strings.ToUpper(name)
	for i := range table {
		if table[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// Name returns the name for the given opcode.
// Returns false if the opcode is not recognized.
func Name(opcode int) (string, bool) {
	info, ok := Lookup(opcode)
	return info.Name, ok
}

// Argc returns the number of arguments the given instruction requires.
// Returns -1 if the opcode is not recognized.
func Argc(opcode int) int {
	info, ok := Lookup(opcode)
	if !ok {
		return -1
	}
	return info.Argc
}
