// Package bank implements a banked memory window.
//
// A fixed address window is backed by one of several banks of private
// storage. The active bank is chosen by storing its index into the control
// register. Reading the control register yields the active bank.
package bank

import (
	"github.com/pkg/errors"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
)

// Device defines the memory bank state.
type Device struct {
	port    devices.Port
	store   []byte
	base    uint16 // First address of the window.
	width   uint16 // Window size in bytes.
	control uint16 // Address of the bank select register.
	count   int    // Number of banks.
	bank    int    // Active bank.
}

var _ devices.Device = &Device{}
var _ devices.Memory = &Device{}

// New creates a bank device mapping banks of the given width at base.
// The base must be a multiple of width and the window must not overlap
// the control register.
func New(base, width, control uint16, count int) (*Device, error) {
	if width == 0 || width&(width-1) != 0 {
		return nil, errors.Errorf("bank: width %#04x is not a power of two", width)
	}
	if base%width != 0 {
		return nil, errors.Errorf("bank: base %#04x is not aligned to width %#04x", base, width)
	}
	if int(base)+int(width) > 0x10000 {
		return nil, errors.Errorf("bank: window %#04x+%#04x exceeds the address space", base, width)
	}
	if control >= base && int(control) < int(base)+int(width) {
		return nil, errors.Errorf("bank: control register %#04x lies inside the window", control)
	}
	if count <= 0 || count > 0x100 {
		return nil, errors.Errorf("bank: invalid bank count %d", count)
	}

	d := &Device{
		port:    devices.NewPort(devices.NewID(devices.Builtin, devices.SerialBank), devices.MemoryBank, true, true, base, base+width-1),
		store:   make([]byte, int(width)*count),
		base:    base,
		width:   width,
		control: control,
		count:   count,
	}
	d.port.Listen = append(d.port.Listen, devices.Range{Low: control, High: control})
	return d, nil
}

// NewDefault creates a bank device using the default memory map.
func NewDefault() *Device {
	d, err := New(arch.BankBase, arch.BankWidth, arch.BankSelect, arch.BankCount)
	if err != nil {
		panic(err)
	}
	return d
}

// ID returns the device id.
func (d *Device) ID() devices.ID {
	return d.port.ID
}

// Port returns the device's bus port.
func (d *Device) Port() *devices.Port {
	return &d.port
}

// Bank returns the active bank.
func (d *Device) Bank() int {
	return d.bank
}

// Select sets the active bank. The index wraps at the bank count.
func (d *Device) Select(n int) {
	d.bank = n % d.count
	if d.bank < 0 {
		d.bank += d.count
	}
}

// InWindow returns true if addr lies in the banked window.
func (d *Device) InWindow(addr uint16) bool {
	return addr >= d.base && int(addr) < int(d.base)+int(d.width)
}

func (d *Device) Startup() error {
	d.port.Reset()
	d.bank = 0
	return nil
}

func (d *Device) Shutdown() error {
	d.port.Reset()
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
		if p.Address == d.control {
			p.Data = uint64(d.bank)
		} else {
			p.Data = uint64(d.Peek(p.Address))
		}
		p.Processed = true

	case devices.Store:
		if p.Address == d.control {
			d.Select(int(p.Data & 0xff))
		} else {
			d.Poke(p.Address, byte(p.Data))
		}
		p.Processed = true
	}
}

func (d *Device) offset(addr uint16) int {
	return d.bank*int(d.width) + int(addr%d.width)
}

// Peek returns the byte at addr in the active bank.
func (d *Device) Peek(addr uint16) byte {
	return d.store[d.offset(addr)]
}

// Poke sets the byte at addr in the active bank.
func (d *Device) Poke(addr uint16, value byte) {
	d.store[d.offset(addr)] = value
}
