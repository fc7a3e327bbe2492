// Package system wires the cpu, bus and peripherals into a runnable machine.
package system

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
	"github.com/hexaflex/dcff/devices/bus"
	"github.com/hexaflex/dcff/devices/fffe/bank"
	"github.com/hexaflex/dcff/devices/fffe/clock"
	"github.com/hexaflex/dcff/devices/fffe/cpu"
	"github.com/hexaflex/dcff/devices/fffe/ram"
	"github.com/hexaflex/dcff/devices/fffe/terminal"
	"github.com/hexaflex/dcff/image"
)

var (
	// ErrHalted is returned by Step when the cpu no longer runs.
	ErrHalted = errors.New("system: cpu halted")

	// ErrBudget is returned by Run when the tick limit was reached first.
	ErrBudget = errors.New("system: tick budget exhausted")
)

// System defines a complete machine.
type System struct {
	cfg    Config
	log    logrus.FieldLogger
	bus    *bus.Bus
	cpu    *cpu.CPU
	ram    *ram.Device
	term   *terminal.Device
	ticker *clock.Device // nil when disabled.
	bank   *bank.Device
	hooks  []*Hook
	reads  []uint16 // Addresses the cpu read during the current tick.
	ticks  uint64
	entry  uint16 // Entry point of the loaded image.
}

var _ devices.Memory = &System{}

// New creates a machine with the given configuration.
func New(cfg Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	s := &System{
		cfg: cfg,
		log: cfg.Log.WithField("component", "system"),
	}

	var err error
	s.bank, err = bank.New(cfg.BankBase, cfg.BankWidth, cfg.BankSelect, cfg.BankCount)
	if err != nil {
		return nil, err
	}

	s.cpu, err = cpu.New(cpu.Config{
		Log:           cfg.Log,
		Features:      cfg.Features,
		CacheCapacity: cfg.CacheCapacity,
		StackTop:      cfg.StackTop,
		CodeStart:     arch.CodeStart,
		IRQBase:       cfg.IRQBase,
		MMIOBase:      arch.MMIOBase,
		Uncached:      []devices.Range{{Low: cfg.BankBase, High: cfg.BankBase + cfg.BankWidth - 1}},
		Trace:         cfg.Trace,
		OnRead:        s.onRead,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cpu")
	}

	s.ram, err = ram.New(cfg.RAMSize)
	if err != nil {
		return nil, err
	}

	s.term = terminal.New(cfg.Terminal)

	if cfg.Ticker {
		s.ticker, err = clock.New(cfg.TickerInterval, cfg.TickerIRQ, cfg.Now)
		if err != nil {
			return nil, err
		}
	}

	// Attach order is clock order: every bus round starts at the cpu.
	s.bus = bus.New(cfg.Log)
	s.bus.Attach(s.cpu)
	s.bus.Attach(s.ram)
	s.bus.Attach(s.term)
	if s.ticker != nil {
		s.bus.Attach(s.ticker)
	}
	s.bus.Attach(s.bank)
	return s, nil
}

// Config returns the machine configuration.
func (s *System) Config() Config { return s.cfg }

// CPU returns the processor.
func (s *System) CPU() *cpu.CPU { return s.cpu }

// Bus returns the system bus.
func (s *System) Bus() *bus.Bus { return s.bus }

// RAM returns main memory.
func (s *System) RAM() *ram.Device { return s.ram }

// Terminal returns the terminal device.
func (s *System) Terminal() *terminal.Device { return s.term }

// Ticker returns the periodic timer, or nil when it is disabled.
func (s *System) Ticker() *clock.Device { return s.ticker }

// Bank returns the memory bank device.
func (s *System) Bank() *bank.Device { return s.bank }

// Ticks returns the number of ticks since startup.
func (s *System) Ticks() uint64 { return s.ticks }

// Startup initializes every device and points the cpu at the entry of
// the loaded image. Memory contents survive.
func (s *System) Startup() error {
	s.ticks = 0
	s.reads = s.reads[:0]
	if err := s.bus.Devices().Startup(s.log); err != nil {
		return err
	}
	s.cpu.Jump(s.entry)
	return nil
}

// Shutdown cleans up every device.
func (s *System) Shutdown() error {
	return s.bus.Devices().Shutdown(s.log)
}

// Load copies the image into memory and points the cpu at its entry.
// Breakpoints in the image's debug data become halting hooks, replacing
// those of a previously loaded image.
func (s *System) Load(img *image.Image) error {
	if err := img.Place(s, len(s.ram.Memory())); err != nil {
		return err
	}

	s.removeHooks(breakpointHook)

	for _, addr := range img.Debug.Breakpoints() {
		err := s.AddHook(&Hook{
			Name:      breakpointHook,
			Location:  InstructionAt(),
			Condition: Match,
			Value:     addr,
			Action:    Halt,
		})
		if err != nil {
			return err
		}
	}

	s.entry = img.Entry()
	s.cpu.Jump(s.entry)
	s.log.WithFields(logrus.Fields{
		"size":  len(img.Code),
		"entry": img.Entry(),
	}).Info("image loaded")
	return nil
}

// Clock advances the machine by one tick. Every device is clocked once,
// each followed by a bus round, and hooks are evaluated afterwards.
func (s *System) Clock() {
	s.reads = s.reads[:0]
	for _, dev := range s.bus.Devices() {
		dev.Clock()
		s.bus.Clock()
	}
	s.ticks++
	s.evaluateHooks()
}

// Step runs a single tick. Returns ErrHalted if the cpu stopped before or
// during the tick.
func (s *System) Step() error {
	if s.cpu.Halted() {
		return ErrHalted
	}
	s.Clock()
	if s.cpu.Halted() {
		return ErrHalted
	}
	return nil
}

// Run clocks the machine until the cpu stops or limit ticks have passed.
// A limit of 0 means no limit. Returns the number of ticks run.
func (s *System) Run(limit uint64) (uint64, error) {
	var n uint64
	for !s.cpu.Halted() && (limit == 0 || n < limit) {
		s.Clock()
		n++
	}

	if err := s.term.Err(); err != nil {
		return n, errors.Wrap(err, "terminal")
	}

	switch {
	case s.cpu.State() == cpu.Exception:
		return n, errors.Wrapf(s.cpu.Err(), "cpu exception after %d ticks", n)
	case !s.cpu.Halted():
		return n, ErrBudget
	}
	return n, nil
}

// Peek returns the byte at addr as the cpu would see it, bypassing the bus.
// Addresses beyond the end of RAM wrap around.
func (s *System) Peek(addr uint16) byte {
	if s.bank.InWindow(addr) {
		return s.bank.Peek(addr)
	}
	return s.ram.Peek(addr)
}

// Poke sets the byte at addr, bypassing the bus and the cpu cache.
func (s *System) Poke(addr uint16, value byte) {
	if s.bank.InWindow(addr) {
		s.bank.Poke(addr, value)
		return
	}
	s.ram.Poke(addr, value)
}

func (s *System) onRead(addr uint16) {
	s.reads = append(s.reads, addr)
}
