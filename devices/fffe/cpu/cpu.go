// Package cpu implements the pipelined 16-bit CPU.
//
// The CPU has no direct access to memory. Every byte it reads or writes
// travels through its bus port, optionally short-circuited by a small
// direct-mapped cache. A pipeline stage that needs a byte the bus has not
// delivered yet stalls and is retried on the next Clock call.
package cpu

import (
	"github.com/sirupsen/logrus"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
	"github.com/hexaflex/dcff/devices/cache"
)

// TraceFunc represents a callback handler for debug trace output.
// It is called once for every retired instruction.
type TraceFunc func(*Intermediate)

// ReadFunc is called for every memory byte the CPU reads.
type ReadFunc func(addr uint16)

// Config defines CPU construction parameters.
type Config struct {
	Log           logrus.FieldLogger
	Features      arch.Feature    // Enabled instruction groups.
	CacheCapacity int             // Cache size in bytes; 0 disables the cache.
	StackTop      uint16          // Highest stack address.
	CodeStart     uint16          // Initial pc.
	IRQBase       uint16          // Interrupt vector table.
	MMIOBase      uint16          // Addresses at or above this are never cached.
	Uncached      []devices.Range // Additional windows that bypass the cache.
	Trace         TraceFunc       // Optional trace handler.
	OnRead        ReadFunc        // Optional read observer.
}

// DefaultConfig returns the configuration of the standard machine.
func DefaultConfig() Config {
	return Config{
		Features:  arch.AllFeatures,
		StackTop:  arch.StackTop,
		CodeStart: arch.CodeStart,
		IRQBase:   arch.IRQBase,
		MMIOBase:  arch.MMIOBase,
	}
}

// CPU implements the runtime.
type CPU struct {
	cfg          Config
	log          logrus.FieldLogger
	port         devices.Port
	cache        *cache.Cache
	regs         [arch.SR]uint16 // r0-r3, sp, pc.
	status       Status
	state        State
	in           Intermediate
	pending      [arch.IRQCount]bool // Latched interrupt requests.
	npending     int
	busUsed      bool   // A bus reply was consumed this tick.
	err          *Error // Cause of the EXCEPTION state.
	cycles       uint64
	instructions uint64
}

var _ devices.Device = &CPU{}

// New creates a new CPU with the given configuration.
func New(cfg Config) (*CPU, error) {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Features == 0 {
		cfg.Features = arch.AllFeatures
	}
	cfg.Features |= arch.Base

	c := &CPU{
		cfg:  cfg,
		port: devices.NewPort(devices.NewID(devices.Builtin, devices.SerialCPU), devices.CPU, false, false, 0, 0),
	}
	c.port.Listen = nil
	c.log = cfg.Log.WithField("device", c.port.ID)

	if cfg.CacheCapacity > 0 {
		cc, err := cache.New(cfg.CacheCapacity)
		if err != nil {
			return nil, err
		}
		c.cache = cc
	}

	c.reset()
	return c, nil
}

// ID returns the cpu's device Id.
func (c *CPU) ID() devices.ID {
	return c.port.ID
}

// Port returns the cpu's bus port.
func (c *CPU) Port() *devices.Port {
	return &c.port
}

// Cache returns the cpu cache, or nil if it has none.
func (c *CPU) Cache() *cache.Cache {
	return c.cache
}

// Startup resets the cpu to its power-on state.
func (c *CPU) Startup() error {
	c.reset()
	return nil
}

// Shutdown cleans up internal resources.
func (c *CPU) Shutdown() error {
	c.log.WithFields(logrus.Fields{
		"cycles":       c.cycles,
		"instructions": c.instructions,
	}).Info("shutdown")
	c.port.Reset()
	return nil
}

func (c *CPU) reset() {
	c.regs = [arch.SR]uint16{}
	c.regs[arch.SP] = c.cfg.StackTop + 1
	c.regs[arch.PC] = c.cfg.CodeStart
	c.status = Status{}
	c.pending = [arch.IRQCount]bool{}
	c.npending = 0
	c.err = nil
	c.cycles = 0
	c.instructions = 0
	c.port.Reset()
	if c.cache != nil {
		c.cache.Invalidate()
	}
	c.enter(FetchInstruction)
}

// State returns the current pipeline stage.
func (c *CPU) State() State {
	return c.state
}

// Halted returns true once the cpu reached HALT or EXCEPTION.
func (c *CPU) Halted() bool {
	return c.state.Stopped()
}

// Err returns the cause of the EXCEPTION state, or nil.
func (c *CPU) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

// Halt stops the cpu. It is used by debug hooks.
func (c *CPU) Halt() {
	if !c.state.Stopped() {
		c.state = Halt
	}
}

// Register returns the value of the given register.
// SR yields the encoded status register.
func (c *CPU) Register(r arch.Register) uint16 {
	switch {
	case r == arch.SR:
		return c.status.Encode()
	case r >= 0 && r < arch.SR:
		return c.regs[r]
	}
	return 0
}

// SetRegister sets the value of the given register.
func (c *CPU) SetRegister(r arch.Register, v uint16) {
	switch {
	case r == arch.SR:
		c.status.Decode(v, arch.FlagSoftware)
	case r >= 0 && r < arch.SR:
		c.regs[r] = v
	}
}

// Jump abandons the in-flight instruction and resumes fetching at addr.
// A pending bus request is dropped.
func (c *CPU) Jump(addr uint16) {
	c.regs[arch.PC] = addr
	c.port.Reset()
	if !c.state.Stopped() {
		c.enter(FetchInstruction)
	}
}

// Status returns the cpu flags.
func (c *CPU) Status() Status {
	return c.status
}

// Intermediate returns the in-flight instruction record.
func (c *CPU) Intermediate() *Intermediate {
	return &c.in
}

// Cycles returns the number of ticks the cpu has been running.
func (c *CPU) Cycles() uint64 {
	return c.cycles
}

// Instructions returns the number of retired instructions.
func (c *CPU) Instructions() uint64 {
	return c.instructions
}

// CPI returns the average number of cycles per retired instruction.
func (c *CPU) CPI() float64 {
	if c.instructions == 0 {
		return 0
	}
	return float64(c.cycles) / float64(c.instructions)
}

// Pending returns true if the given interrupt is latched and not yet serviced.
func (c *CPU) Pending(irq int) bool {
	return irq >= 0 && irq < len(c.pending) && c.pending[irq]
}

// Clock advances the cpu by one tick. Stages are chained until one of them
// stalls on the bus or an instruction retires.
func (c *CPU) Clock() {
	if c.state.Stopped() {
		return
	}

	c.cycles++
	c.busUsed = false
	c.latchInterrupt()

	if c.npending > 0 && !c.status.MI && !c.status.MNI {
		c.serviceInterrupt()
	}

	for c.step() {
	}
}

// latchInterrupt moves an interrupt delivered by the bus into the pending
// set and frees the port.
func (c *CPU) latchInterrupt() {
	p := &c.port
	if p.State != devices.Interrupt {
		return
	}

	irq := int(p.Address) % arch.IRQCount
	if !c.pending[irq] {
		c.pending[irq] = true
		c.npending++
	}
	p.Reset()
}

// serviceInterrupt abandons the in-flight instruction and enters the
// interrupt sequence for the lowest pending interrupt.
func (c *CPU) serviceInterrupt() {
	for irq := range c.pending {
		if c.pending[irq] {
			c.pending[irq] = false
			c.npending--
			c.in.reset(c.in.IP)
			c.interrupt(irq, c.in.IP)
			return
		}
	}
}

// interrupt starts the interrupt sequence. ret is the address execution
// resumes at after RETI.
func (c *CPU) interrupt(irq int, ret uint16) {
	c.in.IRQ = irq
	c.in.Return = ret
	c.log.WithFields(logrus.Fields{
		"irq":    irq,
		"return": ret,
	}).Debug("interrupt")
	c.enter(InterruptPushPCHigh)
}

// enter switches to the given stage.
func (c *CPU) enter(s State) {
	switch s {
	case FetchInstruction:
		c.status.MNI = false
		c.in.reset(c.regs[arch.PC])
	case WritebackLow, PushHigh, PopLow, PopSRLow, InterruptPushPCHigh:
		c.status.MNI = true
	}
	c.state = s
}

// retire completes the current instruction.
func (c *CPU) retire(next State) {
	c.instructions++
	if c.cfg.Trace != nil {
		c.cfg.Trace(&c.in)
	}
	c.enter(next)
}

// fault enters the EXCEPTION state. The diagnostic is logged once.
func (c *CPU) fault(f string, argv ...interface{}) {
	c.err = NewError(&c.in, f, argv...)
	c.state = Exception
	c.log.WithFields(logrus.Fields{
		"ip":     c.in.IP,
		"opcode": c.in.Opcode,
	}).Error(c.err.Msg)
}
