package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/system"
)

// Config defines program configuration.
type Config struct {
	Image          string        // Path to the image file to load.
	Debug          bool          // Halt on breakpoints stored in the image.
	PrintTrace     bool          // Print instruction trace data?
	Break          string        // Starlark predicate; the machine halts once it yields true.
	Watch          []string      // Registers whose changes are logged.
	Serial         string        // Serial device receiving terminal output.
	Baud           int           // Serial line speed.
	Ticker         bool          // Attach the periodic timer?
	TickerInterval time.Duration // Time between timer interrupts.
	TickerIRQ      int           // Interrupt raised by the timer.
	Cache          int           // Cache capacity in bytes.
	Features       string        // Enabled instruction groups.
	Limit          uint64        // Tick budget; 0 runs until halted.
}

func defaultConfig() Config {
	sc := system.DefaultConfig()
	return Config{
		Baud:           115200,
		TickerInterval: sc.TickerInterval,
		TickerIRQ:      sc.TickerIRQ,
		Cache:          sc.CacheCapacity,
		Features:       "all",
	}
}

// bindFlags registers the run options with fs.
func (c *Config) bindFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Halt on breakpoints stored in the image.")
	fs.BoolVar(&c.PrintTrace, "trace", c.PrintTrace, "Print every retired instruction to stderr.")
	fs.StringVar(&c.Break, "break", c.Break, "Halt once this expression over r0-r3, sp, pc, sr, ip, ticks, mem(a) and word(a) is true.")
	fs.StringSliceVar(&c.Watch, "watch", c.Watch, "Log every change of these registers: r0-r3, sp, pc or sr.")
	fs.StringVar(&c.Serial, "serial", c.Serial, "Send terminal output to this serial device instead of stdout.")
	fs.IntVar(&c.Baud, "baud", c.Baud, "Serial line speed.")
	fs.BoolVar(&c.Ticker, "ticker", c.Ticker, "Attach the periodic timer.")
	fs.DurationVar(&c.TickerInterval, "ticker-interval", c.TickerInterval, "Time between timer interrupts.")
	fs.IntVar(&c.TickerIRQ, "ticker-irq", c.TickerIRQ, "Interrupt raised by the timer.")
	fs.IntVar(&c.Cache, "cache", c.Cache, "Cache capacity in bytes; 0 disables the cache.")
	fs.StringVar(&c.Features, "features", c.Features, "Comma separated instruction groups: base, mul, f16, bf16, cache or all.")
	fs.Uint64Var(&c.Limit, "limit", c.Limit, "Stop after this many ticks; 0 runs until the cpu halts.")
}

// System translates the options into a machine configuration.
func (c *Config) System(out io.Writer) (system.Config, error) {
	features, ok := arch.ParseFeatures(c.Features)
	if !ok {
		return system.Config{}, errors.Errorf("--features: unknown feature in %q", c.Features)
	}

	sc := system.DefaultConfig()
	sc.Features = features
	sc.CacheCapacity = c.Cache
	sc.Ticker = c.Ticker
	sc.TickerInterval = c.TickerInterval
	sc.TickerIRQ = c.TickerIRQ
	sc.Terminal = out
	return sc, sc.Validate()
}
