// Package terminal implements a write-only character terminal.
//
// Every byte stored at the terminal's output register is written to the
// configured output stream. Reads are acknowledged with zero.
package terminal

import (
	"io"
	"os"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
)

// Device defines the terminal state.
type Device struct {
	port  devices.Port
	out   io.Writer
	err   error  // First write error; output stops after it.
	Count uint64 // Number of characters written.
}

var _ devices.Device = &Device{}

// New creates a terminal writing to w. A nil writer selects stdout.
func New(w io.Writer) *Device {
	if w == nil {
		w = os.Stdout
	}
	return &Device{
		port: devices.NewPort(devices.NewID(devices.Builtin, devices.SerialTerminal),
			devices.Terminal, false, true, arch.TerminalOut, arch.TerminalOut),
		out: w,
	}
}

// ID returns the device id.
func (d *Device) ID() devices.ID {
	return d.port.ID
}

// Port returns the device's bus port.
func (d *Device) Port() *devices.Port {
	return &d.port
}

// Err returns the first error the output stream reported, if any.
func (d *Device) Err() error {
	return d.err
}

func (d *Device) Startup() error {
	d.port.Reset()
	d.err = nil
	return nil
}

// Shutdown closes the output stream if it is closable and not stdout.
func (d *Device) Shutdown() error {
	d.port.Reset()
	if c, ok := d.out.(io.Closer); ok && d.out != os.Stdout && d.out != os.Stderr {
		return c.Close()
	}
	return nil
}

// Clock serves a pending request.
func (d *Device) Clock() {
	p := &d.port
	if p.Processed {
		return
	}

	switch p.State {
	case devices.Fetch:
		// No input source; reads yield zero.
		p.Data = 0
		p.Processed = true
	case devices.Store:
		if d.err == nil {
			_, d.err = d.out.Write([]byte{byte(p.Data)})
		}
		d.Count++
		p.Processed = true
	}
}
