package cpu

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
	"github.com/hexaflex/dcff/devices/bus"
	"github.com/hexaflex/dcff/devices/fffe/ram"
	"github.com/hexaflex/dcff/devices/fffe/terminal"
)

const tickLimit = 20000

func TestMOVADD(t *testing.T) {
	//   MOV r0, $0005
	//   ADD r0, $0003

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(5)...)
	ct.emit(arch.ADD, arch.RR0, arch.XImm16, w(3)...)
	assert.Equal(t, []byte{0x02, 0x39, 0x05, 0x00, 0x04, 0x39, 0x03, 0x00}, ct.program.Bytes())

	r := newRig(t, ct)
	for i := 0; i < tickLimit && r.cpu.Instructions() < 2; i++ {
		r.tick()
	}

	assert.Equal(t, uint64(2), r.cpu.Instructions())
	assert.Equal(t, uint16(8), r.cpu.Register(arch.R0))
	assert.False(t, r.cpu.Status().Z)
	assert.False(t, r.cpu.Status().L)
}

func TestHLT(t *testing.T) {
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	r := newRig(t, ct)
	r.tick()
	assert.Equal(t, FetchInstruction, r.cpu.State())
	r.tick()
	assert.Equal(t, Halt, r.cpu.State())

	regs := snapshot(r.cpu)
	for i := 0; i < 50; i++ {
		r.tick()
	}
	assert.Equal(t, regs, snapshot(r.cpu))
	assert.Equal(t, Halt, r.cpu.State())
	assert.Equal(t, uint64(1), r.cpu.Instructions())
	assert.NoError(t, r.cpu.Err())
}

func TestStall(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)
	p := c.Port()

	// Without a bus the request never completes; the stage must not move.
	for i := 0; i < 3; i++ {
		c.Clock()
		assert.Equal(t, FetchInstruction, c.State())
		assert.Equal(t, devices.Fetch, p.State)
		assert.Equal(t, uint16(0), p.Address)
		assert.Equal(t, uint16(0), c.Register(arch.PC))
	}

	p.Data = arch.HLT
	p.Processed = true
	c.Clock()
	assert.Equal(t, Halt, c.State())
	assert.Equal(t, uint16(1), c.Register(arch.PC))
}

func TestLifecycleLogging(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	cfg := testConfig()
	cfg.Log = log

	c, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, c.Startup())
	assert.Empty(t, hook.AllEntries())

	require.NoError(t, c.Shutdown())
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "shutdown", hook.LastEntry().Message)
	assert.Contains(t, hook.LastEntry().Data, "cycles")
}

func TestStaleReply(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)
	p := c.Port()

	// A reply for an address the pipeline no longer wants is discarded
	// and the correct request goes out.
	p.State = devices.Fetch
	p.Address = 0x1234
	p.Data = arch.HLT
	p.Processed = true

	c.Clock()
	assert.Equal(t, FetchInstruction, c.State())
	assert.Equal(t, devices.Fetch, p.State)
	assert.Equal(t, uint16(0), p.Address)
	assert.False(t, p.Processed)
}

func TestOneReplyPerTick(t *testing.T) {
	c, err := New(testConfig())
	require.NoError(t, err)
	p := c.Port()

	c.Clock()
	p.Data = arch.MOV
	p.Processed = true

	// The reply is consumed; the next fetch waits for the next tick.
	c.Clock()
	assert.Equal(t, FetchAddressingModes, c.State())
	assert.Equal(t, devices.Idle, p.State)

	c.Clock()
	assert.Equal(t, devices.Fetch, p.State)
	assert.Equal(t, uint16(1), p.Address)
}

func TestMOVB(t *testing.T) {
	//   MOV  r0, $ffff
	//   MOVB r0, $1234
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0xffff)...)
	ct.emit(arch.MOVB, arch.RR0, arch.XImm16, w(0x1234)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0x34
	ct.want[arch.PC] = 9
	runTest(t, ct)
}

func TestMemoryOperands(t *testing.T) {
	//   MOV [0100], $1234
	//   MOV r1, $0100
	//   MOV r2, [r1]
	//   MOV r3, [r1+0001]
	//   MOV r0, $0002
	//   MOV sp, [00fc+r0*2]
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RInd16, arch.XImm16, append(w(0x1234), w(0x100)...)...)
	ct.emit(arch.MOV, arch.RR1, arch.XImm16, w(0x100)...)
	ct.emit(arch.MOV, arch.RR2, arch.XIndR1)
	ct.emit(arch.MOV, arch.RR3, arch.XOffR1, w(1)...)
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(2)...)
	ct.emit(arch.MOV, arch.RSP, arch.XScaR0, append(w(0xfc), 2)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R1] = 0x100
	ct.want[arch.R2] = 0x1234
	ct.want[arch.R3] = 0x12
	ct.want[arch.SP] = 0x1234
	ct.wantMem[0x100] = 0x34
	ct.wantMem[0x101] = 0x12
	runTest(t, ct)
}

func TestIndirectR0Destination(t *testing.T) {
	//   MOV r0, $0200
	//   MOV [r0], $beef
	//   ADD [r0], $0001
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0x200)...)
	ct.emit(arch.MOV, arch.RIndR0, arch.XImm16, w(0xbeef)...)
	ct.emit(arch.ADD, arch.RIndR0, arch.XImm16, w(1)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.wantMem[0x200] = 0xf0
	ct.wantMem[0x201] = 0xbe
	runTest(t, ct)
}

func TestADDCarry(t *testing.T) {
	//   MOV r0, $ffff
	//   ADD r0, $0002
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0xffff)...)
	ct.emit(arch.ADD, arch.RR0, arch.XImm16, w(2)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 1
	ct.flags = arch.FlagAO | arch.FlagL
	runTest(t, ct)
}

func TestADC(t *testing.T) {
	//   MOV r0, $ffff
	//   ADD r0, $0001
	//   ADC r1, $0000
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0xffff)...)
	ct.emit(arch.ADD, arch.RR0, arch.XImm16, w(1)...)
	ct.emit(arch.ADC, arch.RR1, arch.XImm16, w(0)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0
	ct.want[arch.R1] = 1
	runTest(t, ct)
}

func TestSUBLess(t *testing.T) {
	//   MOV r0, $fffe
	//   SUB r0, $0001
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0xfffe)...)
	ct.emit(arch.SUB, arch.RR0, arch.XImm16, w(1)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	// -2 < 1 signed, but no unsigned borrow.
	ct.want[arch.R0] = 0xfffd
	ct.flags = arch.FlagL
	runTest(t, ct)
}

func TestSUBBorrow(t *testing.T) {
	//   MOV r0, $0001
	//   SUB r0, $0002
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(1)...)
	ct.emit(arch.SUB, arch.RR0, arch.XImm16, w(2)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0xffff
	ct.flags = arch.FlagL | arch.FlagUL | arch.FlagAO | arch.FlagFL
	runTest(t, ct)
}

func TestCMPEqual(t *testing.T) {
	//   MOV r1, $0007
	//   CMP r1, $0007
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR1, arch.XImm16, w(7)...)
	ct.emit(arch.CMP, arch.RR1, arch.XImm16, w(7)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R1] = 7
	ct.flags = arch.FlagZ | arch.FlagFZ
	runTest(t, ct)
}

func TestMUL(t *testing.T) {
	//   MOV r0, $8000
	//   MUL r0, $0003
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0x8000)...)
	ct.emit(arch.MUL, arch.RR0, arch.XImm16, w(3)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0x8000
	runTest(t, ct)
}

func TestDIVByZero(t *testing.T) {
	//   MOV r0, $0004
	//   DIV r0, $0000
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(4)...)
	ct.emit(arch.DIV, arch.RR0, arch.XImm16, w(0)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0
	r := runTest(t, ct)
	assert.True(t, r.cpu.Status().AO)
	assert.True(t, r.cpu.Status().Z)
}

func TestALU(t *testing.T) {
	tests := []struct {
		opcode int
		a, b   uint16
		want   uint16
		ao     bool
	}{
		{arch.DIV, 7, 2, 3, false},
		{arch.MOD, 7, 2, 1, false},
		{arch.SDIV, 0xfff9, 2, 0xfffd, false},
		{arch.SDIV, 0x8000, 0xffff, 0x8000, true},
		{arch.AND, 0xf0f0, 0xff00, 0xf000, false},
		{arch.OR, 0xf0f0, 0x0f00, 0xfff0, false},
		{arch.XOR, 0xffff, 0x00ff, 0xff00, false},
		{arch.SHL, 0x8001, 1, 0x0002, true},
		{arch.SHR, 0x0003, 1, 0x0001, true},
		{arch.SAR, 0x8000, 4, 0xf800, false},
		{arch.ROL, 0x8001, 1, 0x0003, true},
		{arch.ROR, 0x0001, 1, 0x8000, true},
	}

	for _, tt := range tests {
		name, _ := arch.Name(tt.opcode)
		t.Run(name, func(t *testing.T) {
			ct := newCodeTest()
			ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(tt.a)...)
			ct.emit(tt.opcode, arch.RR0, arch.XImm16, w(tt.b)...)
			ct.emit(arch.HLT, arch.RNone, arch.XNone)

			ct.want[arch.R0] = tt.want
			r := runTest(t, ct)
			assert.Equal(t, tt.ao, r.cpu.Status().AO)
		})
	}
}

func TestUnary(t *testing.T) {
	tests := []struct {
		opcode int
		a      uint16
		want   uint16
		ao     bool
	}{
		{arch.INC, 0xffff, 0, true},
		{arch.DEC, 0, 0xffff, true},
		{arch.NEG, 1, 0xffff, false},
		{arch.NOT, 0x00ff, 0xff00, false},
		{arch.SWAP, 0x1234, 0x3412, false},
		{arch.ITOF, 2, 0x4000, false},
		{arch.FTOI, 0xc200, 0xfffd, false},
	}

	for _, tt := range tests {
		name, _ := arch.Name(tt.opcode)
		t.Run(name, func(t *testing.T) {
			ct := newCodeTest()
			ct.emit(arch.MOV, arch.RR2, arch.XImm16, w(tt.a)...)
			ct.emit(tt.opcode, arch.RNone, arch.XR2)
			ct.emit(arch.HLT, arch.RNone, arch.XNone)

			ct.want[arch.R2] = tt.want
			r := runTest(t, ct)
			assert.Equal(t, tt.ao, r.cpu.Status().AO)
		})
	}
}

func TestINCMemory(t *testing.T) {
	//   INC [0300]
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.INC, arch.RNone, arch.XInd16, w(0x300)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)
	ct.data[0x300] = []byte{0xff, 0x00}

	ct.wantMem[0x300] = 0x00
	ct.wantMem[0x301] = 0x01
	runTest(t, ct)
}

func TestFloat(t *testing.T) {
	//   MOV  r0, $3c00 ; 1.0
	//   FADD r0, $4000 ; 2.0
	//   MOV  r1, $3f80 ; bf16 1.0
	//   BMUL r1, $4040 ; bf16 3.0
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0x3c00)...)
	ct.emit(arch.FADD, arch.RR0, arch.XImm16, w(0x4000)...)
	ct.emit(arch.MOV, arch.RR1, arch.XImm16, w(0x3f80)...)
	ct.emit(arch.BMUL, arch.RR1, arch.XImm16, w(0x4040)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0x4200 // 3.0
	ct.want[arch.R1] = 0x4040
	r := runTest(t, ct)
	assert.True(t, r.cpu.Status().BL)
}

func TestLEA(t *testing.T) {
	//   MOV r1, $1000
	//   LEA r0, [r1+0010]
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR1, arch.XImm16, w(0x1000)...)
	ct.emit(arch.LEA, arch.RR0, arch.XOffR1, w(0x10)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0x1010
	runTest(t, ct)
}

func TestMOVZ(t *testing.T) {
	//   CMP   r0, $0000
	//   MOVZ  r1, $0001
	//   MOVNZ r2, $0001
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.CMP, arch.RR0, arch.XImm16, w(0)...)
	ct.emit(arch.MOVZ, arch.RR1, arch.XImm16, w(1)...)
	ct.emit(arch.MOVNZ, arch.RR2, arch.XImm16, w(1)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R1] = 1
	ct.want[arch.R2] = 0
	runTest(t, ct)
}

func TestPUSHPOP(t *testing.T) {
	//   MOV  r0, $0123
	//   PUSH r0
	//   POP  r1
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0x123)...)
	ct.emit(arch.PUSH, arch.RNone, arch.XR0)
	ct.emit(arch.POP, arch.RNone, arch.XR1)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0x123
	ct.want[arch.R1] = 0x123
	ct.want[arch.SP] = arch.StackTop + 1
	ct.wantMem[arch.StackTop] = 0x01
	ct.wantMem[arch.StackTop-1] = 0x23
	runTest(t, ct)
}

func TestPOPMemory(t *testing.T) {
	//   PUSH $abcd
	//   POP  [0400]
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.PUSH, arch.RNone, arch.XImm16, w(0xabcd)...)
	ct.emit(arch.POP, arch.RNone, arch.XInd16, w(0x400)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.SP] = arch.StackTop + 1
	ct.wantMem[0x400] = 0xcd
	ct.wantMem[0x401] = 0xab
	runTest(t, ct)
}

func TestPUSHSRPOPSR(t *testing.T) {
	//   SETF $0041 ; Z | AO
	//   PUSHSR
	//   CLRF $ffff
	//   POPSR
	//   HLT

	ct := newCodeTest()
	ct.emit(arch.SETF, arch.RNone, arch.XImm16, w(arch.FlagZ|arch.FlagAO)...)
	ct.emit(arch.PUSHSR, arch.RNone, arch.XNone)
	ct.emit(arch.CLRF, arch.RNone, arch.XImm16, w(0xffff)...)
	ct.emit(arch.POPSR, arch.RNone, arch.XNone)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.flags = arch.FlagZ | arch.FlagAO
	ct.want[arch.SP] = arch.StackTop + 1
	runTest(t, ct)
}

func TestCALLRET(t *testing.T) {
	//        CALL sub
	//        HLT
	//   sub: MOV r1, $0007
	//        RET

	ct := newCodeTest()
	ct.emit(arch.CALL, arch.RNone, arch.XImm16, w(5)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)
	ct.emit(arch.MOV, arch.RR1, arch.XImm16, w(7)...)
	ct.emit(arch.RET, arch.RNone, arch.XNone)

	ct.want[arch.R1] = 7
	ct.want[arch.PC] = 5
	ct.want[arch.SP] = arch.StackTop + 1
	ct.wantMem[arch.StackTop-1] = 4
	runTest(t, ct)
}

func TestConditionalJumps(t *testing.T) {
	//         MOV r0, $0003
	//   loop: INC r1
	//         DEC r0
	//         JNZ loop
	//         HLT

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(3)...)
	ct.emit(arch.INC, arch.RNone, arch.XR1)
	ct.emit(arch.DEC, arch.RNone, arch.XR0)
	ct.emit(arch.JNZ, arch.RNone, arch.XImm16, w(4)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0
	ct.want[arch.R1] = 3
	runTest(t, ct)
}

func TestINT(t *testing.T) {
	//        INT $0002
	//        HLT
	//   isr: MOV r3, $0009
	//        RETI

	ct := newCodeTest()
	ct.emit(arch.INT, arch.RNone, arch.XImm16, w(2)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)
	ct.emit(arch.MOV, arch.RR3, arch.XImm16, w(9)...)
	ct.emit(arch.RETI, arch.RNone, arch.XNone)
	ct.data[arch.IRQBase+4] = w(5)

	ct.want[arch.R3] = 9
	ct.want[arch.PC] = 5
	ct.want[arch.SP] = arch.StackTop + 1
	r := runTest(t, ct)
	assert.False(t, r.cpu.Status().MI)
	assert.Equal(t, uint64(4), r.cpu.Instructions())
}

func TestHardwareInterrupt(t *testing.T) {
	//         MOV r1, $0001
	//   loop: CMP r2, $0009
	//         JNZ loop
	//         HLT
	//   isr:  MOV r2, $0009
	//         RETI

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR1, arch.XImm16, w(1)...)
	ct.emit(arch.CMP, arch.RR2, arch.XImm16, w(9)...)
	ct.emit(arch.JNZ, arch.RNone, arch.XImm16, w(4)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)
	ct.data[0x100] = encode(t,
		arch.Instruction{Opcode: arch.MOV, R: arch.RR2, X: arch.XImm16, Args: w(9)},
		arch.Instruction{Opcode: arch.RETI},
	)
	ct.data[arch.IRQBase+2] = w(0x100)

	r := newRig(t, ct)
	for i := 0; i < 40; i++ {
		r.tick()
	}
	require.False(t, r.cpu.Halted())

	r.raise(1)
	r.run(t)

	assert.Equal(t, Halt, r.cpu.State())
	assert.Equal(t, uint16(9), r.cpu.Register(arch.R2))
	assert.Equal(t, uint16(arch.StackTop+1), r.cpu.Register(arch.SP))
	assert.False(t, r.cpu.Status().MI)
	assert.False(t, r.cpu.Pending(1))
}

func TestInterruptMasked(t *testing.T) {
	//         DI
	//   loop: JMP loop

	ct := newCodeTest()
	ct.emit(arch.DI, arch.RNone, arch.XNone)
	ct.emit(arch.JMP, arch.RNone, arch.XImm16, w(1)...)
	ct.data[arch.IRQBase+2] = w(0x100)

	r := newRig(t, ct)
	for r.cpu.Instructions() < 1 {
		r.tick()
	}
	r.raise(1)

	for i := 0; i < 500; i++ {
		r.tick()
		require.True(t, r.cpu.State() < InterruptPushPCHigh, "state %s", r.cpu.State())
		require.Equal(t, uint16(arch.StackTop+1), r.cpu.Register(arch.SP))
		require.True(t, r.cpu.Register(arch.PC) < 0x10)
	}

	assert.True(t, r.cpu.Pending(1))
	assert.True(t, r.cpu.Status().MI)
	assert.Equal(t, byte(0), r.ram.Peek(arch.StackTop))
}

func TestInterruptDuringWriteback(t *testing.T) {
	//        MOV r0, $1234
	//        MOV [0200], r0
	//        HLT
	//   isr: MOV r1, [0200]
	//        RETI

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(0x1234)...)
	ct.emit(arch.MOV, arch.RInd16, arch.XR0, w(0x200)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)
	ct.data[0x100] = encode(t,
		arch.Instruction{Opcode: arch.MOV, R: arch.RR1, X: arch.XInd16, Args: w(0x200)},
		arch.Instruction{Opcode: arch.RETI},
	)
	ct.data[arch.IRQBase+2] = w(0x100)

	r := newRig(t, ct)
	for i := 0; i < tickLimit && r.cpu.State() != WritebackHigh; i++ {
		r.tick()
	}
	require.Equal(t, WritebackHigh, r.cpu.State())
	assert.Equal(t, byte(0x34), r.ram.Peek(0x200))
	assert.Equal(t, byte(0x00), r.ram.Peek(0x201))
	r.interruptNow(t, 1)

	var entered bool
	for i := 0; i < tickLimit && !r.cpu.Halted(); i++ {
		r.tick()
		if s := r.cpu.State(); !entered && s >= InterruptPushPCHigh && s <= InterruptFetchVectorHigh {
			entered = true
			assert.Equal(t, byte(0x34), r.ram.Peek(0x200))
			assert.Equal(t, byte(0x12), r.ram.Peek(0x201))
			assert.Equal(t, uint64(2), r.cpu.Instructions())
		}
	}

	require.True(t, entered)
	assert.Equal(t, Halt, r.cpu.State())
	assert.Equal(t, uint16(0x1234), r.cpu.Register(arch.R1))
	assert.Equal(t, uint16(arch.StackTop+1), r.cpu.Register(arch.SP))
	assert.Equal(t, uint64(5), r.cpu.Instructions())
}

func TestInterruptDuringFetch(t *testing.T) {
	//        MOV r1, $0200
	//        ADD r0, [r1+0004]
	//        HLT
	//   isr: INC r2
	//        RETI

	ct := newCodeTest()
	ct.emit(arch.MOV, arch.RR1, arch.XImm16, w(0x200)...)
	ct.emit(arch.ADD, arch.RR0, arch.XOffR1, w(4)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)
	ct.data[0x100] = encode(t,
		arch.Instruction{Opcode: arch.INC, X: arch.XR2},
		arch.Instruction{Opcode: arch.RETI},
	)
	ct.data[0x204] = w(5)
	ct.data[arch.IRQBase+2] = w(0x100)

	r := newRig(t, ct)
	for i := 0; i < tickLimit && r.cpu.Instructions() < 1; i++ {
		r.tick()
	}
	for i := 0; i < tickLimit && r.cpu.State() != FetchArgumentBytes; i++ {
		r.tick()
	}
	require.Equal(t, FetchArgumentBytes, r.cpu.State())
	require.Equal(t, arch.ADD, r.cpu.Intermediate().Opcode)
	r.interruptNow(t, 1)

	r.tick()
	assert.Equal(t, InterruptPushPCHigh, r.cpu.State())

	r.run(t)
	assert.Equal(t, Halt, r.cpu.State())
	assert.Equal(t, uint16(5), r.cpu.Register(arch.R0))
	assert.Equal(t, uint16(1), r.cpu.Register(arch.R2))
	assert.Equal(t, uint16(arch.StackTop+1), r.cpu.Register(arch.SP))
	assert.Equal(t, byte(4), r.ram.Peek(arch.StackTop-1))
	assert.Equal(t, uint64(5), r.cpu.Instructions())
}

func TestUnknownOpcode(t *testing.T) {
	ct := newCodeTest()
	ct.program.Write([]byte{0x7e})

	r := runTest(t, ct)
	assert.Equal(t, Exception, r.cpu.State())

	var e *Error
	require.ErrorAs(t, r.cpu.Err(), &e)
	assert.Equal(t, uint16(0), e.IP)
	assert.Equal(t, 0x7e, e.Opcode)
}

func TestExtendedOpcode(t *testing.T) {
	// Every EXT prefix moves the opcode past the table; decoding stops at
	// the first one.
	ct := newCodeTest()
	ct.program.Write([]byte{arch.EXT, arch.EXT | arch.NoCache, 0x01})

	r := runTest(t, ct)
	assert.Equal(t, Exception, r.cpu.State())
	assert.Equal(t, arch.ExtStride, r.cpu.Intermediate().Opcode)
	assert.Equal(t, uint16(1), r.cpu.Register(arch.PC))

	ct = newCodeTest()
	ct.cfg.CacheCapacity = 0x100
	ct.program.Write(bytes.Repeat([]byte{arch.EXT}, 64))

	r = newRig(t, ct)
	for i := 0; i < 10 && !r.cpu.Halted(); i++ {
		r.tick()
	}
	assert.Equal(t, Exception, r.cpu.State())
	assert.Equal(t, uint16(1), r.cpu.Register(arch.PC))
}

func TestInvalidModes(t *testing.T) {
	//   MOV <none>, r0

	ct := newCodeTest()
	ct.program.Write([]byte{arch.MOV, arch.JoinModes(arch.RNone, arch.XR0)})

	r := runTest(t, ct)
	assert.Equal(t, Exception, r.cpu.State())
	assert.Error(t, r.cpu.Err())
}

func TestReservedMode(t *testing.T) {
	//   JMP <admx 31>

	ct := newCodeTest()
	ct.program.Write([]byte{arch.JMP, 31 << 3})

	r := runTest(t, ct)
	assert.Equal(t, Exception, r.cpu.State())
}

func TestDisabledFeature(t *testing.T) {
	//   MUL r0, $0002

	ct := newCodeTest()
	ct.cfg.Features = arch.Base
	ct.emit(arch.MUL, arch.RR0, arch.XImm16, w(2)...)

	r := runTest(t, ct)
	assert.Equal(t, Exception, r.cpu.State())
	assert.Contains(t, r.cpu.Err().Error(), "mul")
}

func TestCacheFill(t *testing.T) {
	//   MOV r0, [0100]
	//   MOV.nc r1, [0180]
	//   HLT

	ct := newCodeTest()
	ct.cfg.CacheCapacity = 0x100
	ct.emit(arch.MOV, arch.RR0, arch.XInd16, w(0x100)...)
	ct.emitNC(arch.MOV, arch.RR1, arch.XInd16, w(0x180)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)
	ct.data[0x100] = []byte{0x11, 0x22}
	ct.data[0x180] = []byte{0x33, 0x44}

	ct.want[arch.R0] = 0x2211
	ct.want[arch.R1] = 0x4433
	r := runTest(t, ct)

	cc := r.cpu.Cache()
	require.NotNil(t, cc)
	assert.False(t, cc.Line(0x180).Valid && cc.Line(0x180).Address == 0x180)
	assert.Equal(t, uint16(0x101), cc.Line(0x101).Address)
	assert.Greater(t, cc.Hit, uint64(0))
}

func TestCacheSkipsIO(t *testing.T) {
	//   MOVB [f002], $0041
	//   MOV  r0, [fffe]
	//   HLT

	ct := newCodeTest()
	ct.cfg.CacheCapacity = 0x10
	ct.emit(arch.MOVB, arch.RInd16, arch.XImm16, append(w('A'), w(arch.TerminalOut)...)...)
	ct.emit(arch.MOV, arch.RR0, arch.XInd16, w(0xfffe)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	ct.want[arch.R0] = 0
	r := runTest(t, ct)

	assert.Equal(t, "A", r.out.String())
	for addr := uint16(0); addr < 0x10; addr++ {
		assert.Less(t, r.cpu.Cache().Line(addr).Address, uint16(arch.MMIOBase))
	}
}

func TestINVC(t *testing.T) {
	//   INVC
	//   HLT

	ct := newCodeTest()
	ct.cfg.CacheCapacity = 0x10
	ct.emit(arch.INVC, arch.RNone, arch.XNone)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	r := runTest(t, ct)
	assert.False(t, r.cpu.Cache().Line(0).Valid)
	assert.True(t, r.cpu.Cache().Line(1).Valid)
}

func TestTrace(t *testing.T) {
	ct := newCodeTest()
	ct.emit(arch.NOP, arch.RNone, arch.XNone)
	ct.emit(arch.MOV, arch.RR0, arch.XImm16, w(1)...)
	ct.emit(arch.HLT, arch.RNone, arch.XNone)

	var listing []string
	ct.cfg.Trace = func(in *Intermediate) {
		listing = append(listing, in.String())
	}

	runTest(t, ct)
	assert.Equal(t, []string{"NOP", "MOV r0, $0001", "HLT"}, listing)
}

func TestStatusEncoding(t *testing.T) {
	var s Status
	s.Decode(0xffff, arch.FlagSoftware)
	assert.False(t, s.MNI)
	assert.Equal(t, arch.FlagSoftware, s.Encode())

	s.MNI = true
	assert.Equal(t, uint16(0x7ff), s.Encode())
	assert.Equal(t, "Z|FZ|L|UL|FL|BL|AO|SRC|SWC|MI|MNI", s.String())
	assert.Equal(t, "-", Status{}.String())
}

// rig is a minimal machine: cpu, ram and terminal on a bus.
type rig struct {
	log  *logrus.Logger
	cpu  *CPU
	bus  *bus.Bus
	ram  *ram.Device
	term *terminal.Device
	out  bytes.Buffer
}

func newRig(t *testing.T, ct *codeTest) *rig {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := ct.cfg
	cfg.Log = log

	var r rig
	var err error
	r.log = log

	r.cpu, err = New(cfg)
	require.NoError(t, err)
	r.ram, err = ram.New(arch.MemorySize)
	require.NoError(t, err)
	r.term = terminal.New(&r.out)

	r.bus = bus.New(log)
	require.True(t, r.bus.Attach(r.cpu))
	require.True(t, r.bus.Attach(r.ram))
	require.True(t, r.bus.Attach(r.term))
	require.NoError(t, r.bus.Devices().Startup(log))

	require.NoError(t, r.ram.Load(0, ct.program.Bytes()))
	for addr, p := range ct.data {
		require.NoError(t, r.ram.Load(addr, p))
	}
	return &r
}

// tick clocks every device followed by the bus.
func (r *rig) tick() {
	for _, dev := range r.bus.Devices() {
		dev.Clock()
		r.bus.Clock()
	}
}

// run ticks until the cpu stops.
func (r *rig) run(t *testing.T) {
	t.Helper()
	for i := 0; i < tickLimit; i++ {
		if r.cpu.Halted() {
			return
		}
		r.tick()
	}
	t.Fatalf("cpu did not halt within %d ticks; state %s, pc %04x",
		tickLimit, r.cpu.State(), r.cpu.Register(arch.PC))
}

// raise delivers an interrupt the way the bus does: once the cpu port is free.
func (r *rig) raise(irq uint16) {
	p := r.cpu.Port()
	for p.Busy() {
		r.tick()
	}
	p.State = devices.Interrupt
	p.Address = irq
}

// interruptNow delivers an interrupt on the next tick. The cpu port must be free.
func (r *rig) interruptNow(t *testing.T, irq uint16) {
	t.Helper()
	p := r.cpu.Port()
	require.False(t, p.Busy())
	p.State = devices.Interrupt
	p.Address = irq
}

func runTest(t *testing.T, ct *codeTest) *rig {
	t.Helper()

	r := newRig(t, ct)
	r.run(t)

	for reg, want := range ct.want {
		assert.Equal(t, want, r.cpu.Register(reg), "register %s", reg)
	}
	for addr, want := range ct.wantMem {
		assert.Equal(t, want, r.ram.Peek(addr), "memory %04x", addr)
	}
	if ct.flags != 0 {
		const mask = arch.FlagZ | arch.FlagL | arch.FlagUL | arch.FlagAO
		assert.Equal(t, ct.flags&mask, r.cpu.Register(arch.SR)&mask, "flags %s", r.cpu.Status())
	}

	require.NoError(t, r.bus.Devices().Shutdown(r.log))
	return r
}

type codeTest struct {
	program bytes.Buffer
	cfg     Config
	data    map[uint16][]byte
	want    map[arch.Register]uint16
	wantMem map[uint16]byte
	flags   uint16
}

func newCodeTest() *codeTest {
	return &codeTest{
		cfg:     testConfig(),
		data:    make(map[uint16][]byte),
		want:    make(map[arch.Register]uint16),
		wantMem: make(map[uint16]byte),
	}
}

func (ct *codeTest) emit(opcode int, r arch.ModeR, x arch.ModeX, args ...byte) {
	ct.encode(arch.Instruction{Opcode: opcode, R: r, X: x, Args: args})
}

func (ct *codeTest) emitNC(opcode int, r arch.ModeR, x arch.ModeX, args ...byte) {
	ct.encode(arch.Instruction{Opcode: opcode, NoCache: true, R: r, X: x, Args: args})
}

func (ct *codeTest) encode(in arch.Instruction) {
	p, err := in.Encode(nil)
	if err != nil {
		panic(err)
	}
	ct.program.Write(p)
}

func encode(t *testing.T, code ...arch.Instruction) []byte {
	var p []byte
	var err error
	for i := range code {
		p, err = code[i].Encode(p)
		require.NoError(t, err)
	}
	return p
}

func testConfig() Config {
	cfg := DefaultConfig()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg.Log = log
	return cfg
}

func snapshot(c *CPU) [arch.RegisterCount]uint16 {
	var regs [arch.RegisterCount]uint16
	for r := arch.R0; r < arch.RegisterCount; r++ {
		regs[r] = c.Register(r)
	}
	return regs
}

func w(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}
