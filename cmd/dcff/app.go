package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices/fffe/cpu"
	"github.com/hexaflex/dcff/image"
	"github.com/hexaflex/dcff/internal/translate"
	"github.com/hexaflex/dcff/system"
)

var runConfig = defaultConfig()

var runCmd = &cobra.Command{
	Use:   "run [options] <image file>",
	Short: "Load an image and run it until the cpu halts",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		runConfig.Image = args[0]
		return NewApp(&runConfig).Run()
	},
}

func init() {
	runConfig.bindFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

// App defines application context.
type App struct {
	config *Config        // Application configuration.
	sys    *system.System // Machine running the program.
	image  *image.Image   // Program and its debug data.
	trace  io.Writer      // Destination for trace output.
	start  time.Time      // Time the run started.
}

// NewApp creates a new application instance using the given configuration.
func NewApp(config *Config) *App {
	return &App{
		config: config,
		trace:  os.Stderr,
	}
}

// Run loads the image, runs it and prints a summary.
func (a *App) Run() error {
	p, err := os.ReadFile(a.config.Image)
	if err != nil {
		return err
	}

	a.image, err = image.Read(p)
	if err != nil {
		return errors.Wrapf(err, "load %s", a.config.Image)
	}

	out, err := openOutput(a.config)
	if err != nil {
		return err
	}

	cfg, err := a.config.System(out)
	if err != nil {
		return err
	}
	if a.config.PrintTrace {
		cfg.Trace = a.printTrace
	}

	a.sys, err = system.New(cfg)
	if err != nil {
		return err
	}
	if err := a.sys.Startup(); err != nil {
		return err
	}
	defer func() {
		if err := a.sys.Shutdown(); err != nil {
			logrus.WithError(err).Warn("shutdown")
		}
	}()

	if !a.config.Debug {
		a.image.Debug.Symbols = stripBreakpoints(a.image.Debug.Symbols)
	}
	if err := a.sys.Load(a.image); err != nil {
		return err
	}

	hooks, err := watchHooks(a.config.Watch)
	if err != nil {
		return err
	}
	for _, h := range hooks {
		if err := a.sys.AddHook(h); err != nil {
			return err
		}
	}

	if a.config.Break != "" {
		pred, err := newPredicate(a.config.Break, a.sys)
		if err != nil {
			return err
		}
		if err := a.sys.AddHook(pred.hook()); err != nil {
			return err
		}
	}

	a.start = time.Now()
	ticks, err := a.sys.Run(a.config.Limit)
	a.printSummary(ticks)
	return err
}

// printSummary writes run statistics to stderr.
func (a *App) printSummary(ticks uint64) {
	c := a.sys.CPU()
	elapsed := time.Since(a.start)

	// Program output rarely ends in a newline; keep the summary on its own line.
	if a.config.Serial == "" && a.sys.Terminal().Count > 0 && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stdout)
	}

	var freq float64
	if elapsed > 0 {
		freq = float64(ticks) / elapsed.Seconds()
	}

	fmt.Fprintln(os.Stderr, translate.From("%s after %d ticks: %d instructions, %.2f cycles per instruction, %s",
		c.State(), ticks, c.Instructions(), c.CPI(), prettyFrequency(freq)))

	if cc := c.Cache(); cc != nil {
		fmt.Fprintln(os.Stderr, translate.From("cache: %d hits, %d misses, %.1f%% hit rate",
			cc.Hit, cc.Miss, cc.HitRate()*100))
	}
}

func (a *App) printTrace(in *cpu.Intermediate) {
	var sb strings.Builder
	sb.Grow(120)

	fmt.Fprintf(&sb, "%04x  %s", in.IP, in.String())

	if in.Info.Argc > 0 {
		pad(&sb, 32)
		fmt.Fprintf(&sb, " src %04x dst %04x res %04x", in.Src, in.Dest, in.Result)
	}

	// Add source context if it is available.
	if dbg := a.image.Debug.Find(in.IP); dbg != nil && dbg.File >= 0 && dbg.File < len(a.image.Debug.Files) {
		pad(&sb, 64)
		fmt.Fprintf(&sb, " %s:%d:%d", a.image.Debug.Files[dbg.File], dbg.Line, dbg.Col)
	}

	fmt.Fprintln(a.trace, sb.String())
}

// openOutput returns the stream receiving terminal output.
func openOutput(c *Config) (io.Writer, error) {
	if c.Serial == "" {
		return os.Stdout, nil
	}

	mode := &serial.Mode{BaudRate: c.Baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(c.Serial, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", c.Serial)
	}
	return port, nil
}

// watchHooks creates a hook logging every change of the named registers.
func watchHooks(names []string) ([]*system.Hook, error) {
	var out []*system.Hook
	for _, name := range names {
		if !arch.IsRegister(name) {
			return nil, errors.Errorf("--watch: unknown register %q", name)
		}
		out = append(out, &system.Hook{
			Name:      "watch " + name,
			Location:  system.RegisterAt(arch.RegisterIndex(name)),
			Condition: system.Change,
			Action:    logChange,
		})
	}
	return out, nil
}

func logChange(s *system.System, h *system.Hook) {
	logrus.WithFields(logrus.Fields{
		"register": h.Location,
		"value":    fmt.Sprintf("%04x", s.CPU().Register(h.Location.Register)),
		"ticks":    s.Ticks(),
	}).Info("changed")
}

func stripBreakpoints(symbols []image.DebugData) []image.DebugData {
	out := make([]image.DebugData, len(symbols))
	for i, s := range symbols {
		s.Flags &^= image.Breakpoint
		out[i] = s
	}
	return out
}

// pad pads sb with spaces until it is n characters long.
func pad(sb *strings.Builder, n int) {
	for sb.Len() < n {
		sb.WriteByte(' ')
	}
}

func prettyFrequency(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2f GHz", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2f MHz", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2f KHz", v/1e3)
	default:
		return fmt.Sprintf("%.2f Hz", v)
	}
}
