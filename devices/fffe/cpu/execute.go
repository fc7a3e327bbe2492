package cpu

import (
	"math/bits"

	"github.com/x448/float16"

	"github.com/hexaflex/dcff/arch"
)

var arithOps = map[int]int{
	arch.ADD:  opAdd,
	arch.ADC:  opAdd,
	arch.SUB:  opSub,
	arch.SBB:  opSub,
	arch.MUL:  opMul,
	arch.DIV:  opDiv,
	arch.MOD:  opMod,
	arch.SDIV: opSDiv,
	arch.AND:  opAnd,
	arch.OR:   opOr,
	arch.XOR:  opXor,
	arch.SHL:  opShl,
	arch.SHR:  opShr,
	arch.SAR:  opSar,
	arch.ROL:  opRol,
	arch.ROR:  opRor,
}

var floatOps = map[int]int{
	arch.FADD: opAdd,
	arch.FSUB: opSub,
	arch.FMUL: opMul,
	arch.FDIV: opDiv,
	arch.BADD: opAdd,
	arch.BSUB: opSub,
	arch.BMUL: opMul,
	arch.BDIV: opDiv,
}

// execute runs the decoded instruction and selects the follow-up stage.
func (c *CPU) execute() bool {
	in := &c.in
	s := &c.status
	a, b := in.Dest, in.Src

	if op, ok := arithOps[in.Opcode]; ok {
		carry := s.AO && (in.Opcode == arch.ADC || in.Opcode == arch.SBB)
		in.Result, s.AO = arith(op, a, b, carry)
		c.setFlags(a, b, in.Result)
		return c.complete()
	}

	if op, ok := floatOps[in.Opcode]; ok {
		in.Result, s.AO = float(op, a, b, in.Opcode >= arch.BADD)
		c.setFlags(a, b, in.Result)
		return c.complete()
	}

	switch in.Opcode {
	case arch.NOP:

	case arch.HLT:
		c.retire(Halt)
		return false

	case arch.MOV, arch.MOVB, arch.PUSH:
		in.Result = b

	case arch.LEA:
		in.Result = in.AddrX

	case arch.MOVZ, arch.MOVNZ:
		if s.Z != (in.Opcode == arch.MOVZ) {
			c.retire(FetchInstruction)
			return false
		}
		in.Result = b

	case arch.CMP:
		var r uint16
		r, s.AO = arith(opSub, a, b, false)
		c.setFlags(a, b, r)

	case arch.TST:
		c.setFlags(a, b, a&b)
		s.AO = false

	case arch.INC:
		r := uint32(b) + 1
		in.Result, s.AO = uint16(r), r > 0xffff
		c.setFlags(b, 0, in.Result)

	case arch.DEC:
		in.Result, s.AO = b-1, b == 0
		c.setFlags(b, 0, in.Result)

	case arch.NEG:
		in.Result, s.AO = -b, b == 0x8000
		c.setFlags(b, 0, in.Result)

	case arch.NOT:
		in.Result, s.AO = ^b, false
		c.setFlags(b, 0, in.Result)

	case arch.SWAP:
		in.Result, s.AO = bits.ReverseBytes16(b), false
		c.setFlags(b, 0, in.Result)

	case arch.ITOF:
		in.Result, s.AO = float16.Fromfloat32(float32(int16(b))).Bits(), false
		c.setFlags(b, 0, in.Result)

	case arch.FTOI:
		in.Result, s.AO = ftoi(b)
		c.setFlags(b, 0, in.Result)

	case arch.PUSHSR:
		in.Result = s.Encode() &^ arch.FlagMNI

	case arch.CALL:
		in.Result = c.regs[arch.PC]

	case arch.JMP:
		c.regs[arch.PC] = b

	case arch.JZ, arch.JNZ, arch.JL, arch.JGE, arch.JUL, arch.JUGE,
		arch.JFL, arch.JBL, arch.JO, arch.JNO:
		if c.condition(in.Opcode) {
			c.regs[arch.PC] = b
		}

	case arch.INT:
		c.interrupt(int(b)%arch.IRQCount, c.regs[arch.PC])
		return true

	case arch.DI:
		s.MI = true

	case arch.EI:
		s.MI = false

	case arch.SETF:
		s.Decode(s.Encode()|b, b&arch.FlagSoftware)

	case arch.CLRF:
		s.Decode(s.Encode()&^b, b&arch.FlagSoftware)

	case arch.INVC:
		if c.cache != nil {
			c.cache.Invalidate()
		}
	}

	return c.complete()
}

// complete moves on to the stage that finishes the instruction.
func (c *CPU) complete() bool {
	switch c.in.Info.Class {
	case arch.WriteDest, arch.WriteSrc:
		c.enter(WritebackLow)
		return true
	case arch.Push:
		c.enter(PushHigh)
		return true
	case arch.Pop:
		c.enter(PopLow)
		return true
	case arch.PopSR:
		c.enter(PopSRLow)
		return true
	}

	c.retire(FetchInstruction)
	return false
}

// condition evaluates the flag test of a conditional jump.
func (c *CPU) condition(opcode int) bool {
	s := &c.status
	switch opcode {
	case arch.JZ:
		return s.Z
	case arch.JNZ:
		return !s.Z
	case arch.JL:
		return s.L
	case arch.JGE:
		return !s.L
	case arch.JUL:
		return s.UL
	case arch.JUGE:
		return !s.UL
	case arch.JFL:
		return s.FL
	case arch.JBL:
		return s.BL
	case arch.JO:
		return s.AO
	case arch.JNO:
		return !s.AO
	}
	return false
}
