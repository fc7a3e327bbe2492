// Package ram implements main memory.
package ram

import (
	"github.com/pkg/errors"

	"github.com/hexaflex/dcff/devices"
)

// Device is the system's main memory.
type Device struct {
	port   devices.Port
	memory Memory
}

var _ devices.Device = &Device{}
var _ devices.Memory = &Device{}

// New creates a RAM device with the given capacity in bytes.
func New(capacity int) (*Device, error) {
	if capacity <= 0 {
		return nil, errors.Errorf("ram: invalid capacity %d", capacity)
	}

	high := capacity - 1
	if high > 0xffff {
		high = 0xffff
	}

	return &Device{
		port:   devices.NewPort(devices.NewID(devices.Builtin, devices.SerialRAM), devices.RAM, true, true, 0, uint16(high)),
		memory: make(Memory, capacity),
	}, nil
}

// ID returns the device id.
func (d *Device) ID() devices.ID {
	return d.port.ID
}

// Port returns the device's bus port.
func (d *Device) Port() *devices.Port {
	return &d.port
}

// Memory returns the backing store.
func (d *Device) Memory() Memory {
	return d.memory
}

func (d *Device) Startup() error {
	d.port.Reset()
	return nil
}

func (d *Device) Shutdown() error {
	d.port.Reset()
	return nil
}

// Clock serves a pending fetch or store. A fetch returns the 64-bit word
// starting at the requested address.
func (d *Device) Clock() {
	p := &d.port
	if p.Processed {
		return // Waiting for the requester to collect.
	}

	switch p.State {
	case devices.Fetch:
		p.Data = d.memory.U64(int(p.Address))
		p.Processed = true
	case devices.Store:
		d.memory.SetU8(int(p.Address), byte(p.Data))
		p.Processed = true
	}
}

// Peek returns the byte at the given address.
func (d *Device) Peek(addr uint16) byte {
	return d.memory.U8(int(addr))
}

// Poke sets the byte at the given address.
func (d *Device) Poke(addr uint16, value byte) {
	d.memory.SetU8(int(addr), value)
}

// Load copies p into memory, starting at the given address.
func (d *Device) Load(addr uint16, p []byte) error {
	if len(p) > len(d.memory) {
		return errors.Errorf("ram: image of %d bytes exceeds capacity of %d", len(p), len(d.memory))
	}
	d.memory.Write(int(addr), p)
	return nil
}
