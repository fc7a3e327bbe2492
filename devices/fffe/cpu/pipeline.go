package cpu

import (
	"github.com/hexaflex/dcff/arch"
)

// step runs the current stage. Returns true if the next stage may run
// within the same tick.
func (c *CPU) step() bool {
	switch c.state {
	case FetchInstruction:
		return c.fetchInstruction()
	case FetchAddressingModes:
		return c.fetchAddressingModes()
	case FetchArgumentBytes:
		return c.fetchArgumentBytes()
	case ComputeAddress:
		return c.computeAddress()
	case FetchSource, FetchSourceHigh:
		return c.fetchSource()
	case FetchDestination, FetchDestinationHigh:
		return c.fetchDestination()
	case Execute:
		return c.execute()
	case WritebackLow, WritebackHigh:
		return c.writeback()
	case PushHigh, PushLow:
		return c.push()
	case PopLow, PopHigh, PopSRLow, PopSRHigh:
		return c.pop()
	case InterruptPushPCHigh, InterruptPushPCLow, InterruptFetchVectorLow, InterruptFetchVectorHigh:
		return c.interruptSequence()
	}
	return false
}

func (c *CPU) fetchInstruction() bool {
	pc := c.regs[arch.PC]
	b, ok := c.readMemory(pc, false)
	if !ok {
		return false
	}

	in := &c.in
	c.regs[arch.PC] = pc + 1

	if b&^arch.NoCache == arch.EXT {
		in.Ext++
		if in.Ext*arch.ExtStride >= arch.OpcodeCount {
			in.Opcode = in.Ext * arch.ExtStride
			c.fault("unknown opcode %#02x", in.Opcode)
			return false
		}
		return true
	}

	in.Opcode = in.Ext*arch.ExtStride + int(b&^arch.NoCache)
	in.NoCache = b&arch.NoCache != 0

	info, ok := arch.Lookup(in.Opcode)
	if !ok {
		c.fault("unknown opcode %#02x", in.Opcode)
		return false
	}
	in.Info = info

	if !c.cfg.Features.Has(info.Feature) {
		c.fault("%s: feature %s is disabled", info.Name, info.Feature)
		return false
	}

	if info.Argc == 0 {
		c.state = Execute
	} else {
		c.state = FetchAddressingModes
	}
	return true
}

func (c *CPU) fetchAddressingModes() bool {
	pc := c.regs[arch.PC]
	b, ok := c.readMemory(pc, false)
	if !ok {
		return false
	}

	in := &c.in
	c.regs[arch.PC] = pc + 1
	in.Modes = b
	in.R, in.X = arch.SplitModes(b)

	if !arch.ValidModes(in.Info, in.R, in.X) {
		c.fault("%s: invalid addressing modes %d/%d", in.Info.Name, in.R, in.X)
		return false
	}

	if in.argBytes() > 0 {
		c.state = FetchArgumentBytes
	} else {
		c.state = ComputeAddress
	}
	return true
}

func (c *CPU) fetchArgumentBytes() bool {
	in := &c.in
	for in.Argn < in.argBytes() {
		pc := c.regs[arch.PC]
		b, ok := c.readMemory(pc, false)
		if !ok {
			return false
		}
		c.regs[arch.PC] = pc + 1
		in.Args[in.Argn] = b
		in.Argn++
	}

	c.state = ComputeAddress
	return true
}

// computeAddress resolves the effective addresses of the memory operands.
func (c *CPU) computeAddress() bool {
	in := &c.in
	x := in.X

	switch {
	case x == arch.XInd16:
		in.AddrX = arch.Word(in.Args[:])
	case x.Offset():
		in.AddrX = c.regs[x.Register()] + arch.Word(in.Args[:])
	case x.Scaled():
		in.AddrX = arch.Word(in.Args[:]) + c.regs[x.Register()]*uint16(in.Args[2])
	case x.Category() == arch.MemoryOperand:
		in.AddrX = c.regs[x.Register()]
	}

	switch in.R {
	case arch.RInd16:
		in.AddrR = arch.Word(in.Args[x.Bytes():])
	case arch.RIndR0:
		in.AddrR = c.regs[arch.R0]
	}

	c.state = FetchSource
	return true
}

func (c *CPU) fetchSource() bool {
	in := &c.in
	if !in.Info.ReadSrc {
		c.state = FetchDestination
		return true
	}

	switch in.X.Category() {
	case arch.RegisterOperand:
		in.Src = c.regs[in.X.Register()]
	case arch.ImmediateOperand:
		in.Src = arch.Word(in.Args[:])
	case arch.MemoryOperand:
		v, done := c.readOperand(in.AddrX, FetchSource, FetchSourceHigh, &in.Src)
		if !v {
			return false
		}
		if !done {
			return true
		}
	}

	if in.width() == 1 {
		in.Src &= 0xff
	}
	c.state = FetchDestination
	return true
}

func (c *CPU) fetchDestination() bool {
	in := &c.in
	if !in.Info.ReadDest {
		c.state = Execute
		return true
	}

	switch in.R.Category() {
	case arch.RegisterOperand:
		in.Dest = c.regs[in.R.Register()]
	case arch.MemoryOperand:
		v, done := c.readOperand(in.AddrR, FetchDestination, FetchDestinationHigh, &in.Dest)
		if !v {
			return false
		}
		if !done {
			return true
		}
	}

	if in.width() == 1 {
		in.Dest &= 0xff
	}
	c.state = Execute
	return true
}

// readOperand reads the little endian operand at addr one byte per stage.
// It returns whether progress was made and whether the operand is complete.
func (c *CPU) readOperand(addr uint16, low, high State, out *uint16) (bool, bool) {
	in := &c.in

	if c.state == low {
		b, ok := c.readMemory(addr, in.NoCache)
		if !ok {
			return false, false
		}
		*out = uint16(b)
		if in.width() == 1 {
			return true, true
		}
		c.state = high
		return true, false
	}

	b, ok := c.readMemory(addr+1, in.NoCache)
	if !ok {
		return false, false
	}
	*out |= uint16(b) << 8
	return true, true
}

// writeback stores the result into the destination operand.
func (c *CPU) writeback() bool {
	in := &c.in

	var (
		cat  arch.Category
		reg  arch.Register
		addr uint16
	)
	if in.Info.Class == arch.WriteDest {
		cat, reg, addr = in.R.Category(), in.R.Register(), in.AddrR
	} else {
		cat, reg, addr = in.X.Category(), in.X.Register(), in.AddrX
	}

	if cat == arch.RegisterOperand {
		v := in.Result
		if in.width() == 1 {
			v &= 0xff
		}
		c.regs[reg] = v
		c.retire(FetchInstruction)
		return false
	}

	if c.state == WritebackLow {
		if !c.writeMemory(addr, byte(in.Result), in.NoCache) {
			return false
		}
		if in.width() == 1 {
			c.retire(FetchInstruction)
			return false
		}
		c.state = WritebackHigh
		return true
	}

	if !c.writeMemory(addr+1, byte(in.Result>>8), in.NoCache) {
		return false
	}
	c.retire(FetchInstruction)
	return false
}

// push stores the result below the stack pointer, high byte first.
// sp is only updated once a byte has been stored.
func (c *CPU) push() bool {
	in := &c.in
	sp := c.regs[arch.SP] - 1

	if c.state == PushHigh {
		if !c.writeMemory(sp, byte(in.Result>>8), false) {
			return false
		}
		c.regs[arch.SP] = sp
		c.state = PushLow
		return true
	}

	if !c.writeMemory(sp, byte(in.Result), false) {
		return false
	}
	c.regs[arch.SP] = sp

	if in.Opcode == arch.CALL {
		c.regs[arch.PC] = in.Src
	}
	c.retire(FetchInstruction)
	return false
}

// pop loads the value at the stack pointer, low byte first, and delivers
// it to pc, the status register or the operand.
func (c *CPU) pop() bool {
	in := &c.in
	sp := c.regs[arch.SP]

	b, ok := c.readMemory(sp, false)
	if !ok {
		return false
	}
	c.regs[arch.SP] = sp + 1

	switch c.state {
	case PopLow:
		in.Result = uint16(b)
		c.state = PopHigh
		return true
	case PopSRLow:
		in.Result = uint16(b)
		c.state = PopSRHigh
		return true
	case PopSRHigh:
		in.Result |= uint16(b) << 8
		c.status.Decode(in.Result, arch.FlagSoftware)
		c.retire(FetchInstruction)
		return false
	}

	in.Result |= uint16(b) << 8

	switch in.Opcode {
	case arch.RET:
		c.regs[arch.PC] = in.Result
	case arch.RETI:
		c.regs[arch.PC] = in.Result
		c.status.MI = false
	default:
		if in.X.Category() == arch.MemoryOperand {
			c.state = WritebackLow
			return true
		}
		c.regs[in.X.Register()] = in.Result
	}

	c.retire(FetchInstruction)
	return false
}

// interruptSequence pushes the return address and loads the handler
// address from the vector table.
func (c *CPU) interruptSequence() bool {
	in := &c.in
	sp := c.regs[arch.SP] - 1
	vector := c.cfg.IRQBase + uint16(in.IRQ)*2

	switch c.state {
	case InterruptPushPCHigh:
		if !c.writeMemory(sp, byte(in.Return>>8), false) {
			return false
		}
		c.regs[arch.SP] = sp
		c.state = InterruptPushPCLow

	case InterruptPushPCLow:
		if !c.writeMemory(sp, byte(in.Return), false) {
			return false
		}
		c.regs[arch.SP] = sp
		c.state = InterruptFetchVectorLow

	case InterruptFetchVectorLow:
		b, ok := c.readMemory(vector, false)
		if !ok {
			return false
		}
		in.Result = uint16(b)
		c.state = InterruptFetchVectorHigh

	case InterruptFetchVectorHigh:
		b, ok := c.readMemory(vector+1, false)
		if !ok {
			return false
		}
		in.Result |= uint16(b) << 8
		c.regs[arch.PC] = in.Result
		c.status.MI = true

		if in.Opcode == arch.INT {
			c.retire(FetchInstruction)
		} else {
			c.enter(FetchInstruction)
		}
		return false
	}
	return true
}
