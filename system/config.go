package system

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices/fffe/clock"
	"github.com/hexaflex/dcff/devices/fffe/cpu"
)

// Config defines the machine configuration.
type Config struct {
	Log           logrus.FieldLogger // Defaults to the standard logger.
	RAMSize       int                // RAM capacity in bytes.
	CacheCapacity int                // CPU cache size in bytes; 0 disables the cache.
	Features      arch.Feature       // Enabled instruction groups.
	StackTop      uint16             // Highest stack address.
	IRQBase       uint16             // Interrupt vector table.

	Ticker         bool          // Attach the periodic timer?
	TickerInterval time.Duration // Time between timer interrupts.
	TickerIRQ      int           // Interrupt raised by the timer.
	Now            clock.NowFunc // Time source for the timer; nil selects time.Now.

	BankBase   uint16 // Start of the banked memory window.
	BankWidth  uint16 // Size of the banked memory window.
	BankSelect uint16 // Bank select register.
	BankCount  int    // Number of banks.

	Terminal io.Writer     // Terminal output; nil selects stdout.
	Trace    cpu.TraceFunc // Optional instruction trace handler.
}

// DefaultConfig returns the configuration of the standard machine.
func DefaultConfig() Config {
	return Config{
		RAMSize:        arch.MemorySize,
		CacheCapacity:  0x100,
		Features:       arch.AllFeatures,
		StackTop:       arch.StackTop,
		IRQBase:        arch.IRQBase,
		TickerInterval: 10 * time.Millisecond,
		TickerIRQ:      arch.TickerIRQ,
		BankBase:       arch.BankBase,
		BankWidth:      arch.BankWidth,
		BankSelect:     arch.BankSelect,
		BankCount:      arch.BankCount,
	}
}

// Validate checks the configuration for values the devices cannot work with.
// Device specific checks happen during construction.
func (c *Config) Validate() error {
	if c.RAMSize <= 0 || c.RAMSize > arch.MemorySize {
		return errors.Errorf("config: invalid ram size %d", c.RAMSize)
	}
	if c.CacheCapacity < 0 {
		return errors.Errorf("config: invalid cache capacity %d", c.CacheCapacity)
	}
	if int(c.IRQBase)+2*arch.IRQCount > arch.MemorySize {
		return errors.Errorf("config: interrupt table at %#04x exceeds the address space", c.IRQBase)
	}
	if c.Ticker && c.TickerInterval <= 0 {
		return errors.Errorf("config: invalid ticker interval %v", c.TickerInterval)
	}
	return nil
}
