// Package bus implements the round-robin bus arbiter that connects the CPU
// with memory and peripherals.
//
// Every call to Clock services exactly one attached device. A full round
// over n devices therefore costs n calls. Requests that cannot be routed
// yet (busy target) are retried the next time the requester is attended.
package bus

import (
	"github.com/sirupsen/logrus"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
)

// Bus routes requests between the ports of the attached devices.
type Bus struct {
	log      logrus.FieldLogger
	devices  devices.Map
	attended int    // Index of the device serviced by the next Clock call.
	clock    uint64 // Number of Clock calls.
	mmioBase uint16 // Addresses at or above this are memory mapped I/O.
}

// New creates an empty bus.
func New(log logrus.FieldLogger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{
		log:      log.WithField("device", "bus"),
		mmioBase: arch.MMIOBase,
	}
}

// Attach connects the given device to the bus. Devices are serviced in
// the order they were attached. Returns false if a device with the same
// id is already attached.
func (b *Bus) Attach(dev devices.Device) bool {
	return b.devices.Connect(dev)
}

// Devices returns the attached devices.
func (b *Bus) Devices() devices.Map {
	return b.devices
}

// Attended returns the index of the device serviced by the next Clock call.
func (b *Bus) Attended() int {
	return b.attended
}

// Cycles returns the number of Clock calls so far.
func (b *Bus) Cycles() uint64 {
	return b.clock
}

// Clock services the currently attended device and moves on to the next.
func (b *Bus) Clock() {
	if len(b.devices) == 0 {
		return
	}

	p := b.devices[b.attended].Port()

	switch p.Type {
	case devices.CPU:
		if (p.State == devices.Fetch || p.State == devices.Store) && !p.Processed {
			b.dispatch(p)
		}

	case devices.Clock:
		if p.State == devices.Interrupt {
			b.interrupt(p)
		}

	default:
		if (p.State == devices.Fetch || p.State == devices.Store) && p.Processed {
			b.reply(p)
		}
	}

	b.attended = (b.attended + 1) % len(b.devices)
	b.clock++
}

// dispatch hands a CPU request to the device owning the address.
func (b *Bus) dispatch(p *devices.Port) {
	target := b.route(p.Address)

	if target == nil {
		if p.Address >= b.mmioBase {
			// Unimplemented peripherals are acknowledged immediately.
			p.Processed = true
			p.TargetID = 0
			if p.State == devices.Fetch {
				p.Data = 0
			}
			return
		}

		b.log.WithFields(logrus.Fields{
			"requester": p.ID,
			"address":   p.Address,
			"state":     p.State,
		}).Debug("no target for request")
		return
	}

	if (p.State == devices.Fetch && !target.Readable) || (p.State == devices.Store && !target.Writable) {
		p.Processed = true
		p.TargetID = target.ID
		if p.State == devices.Fetch {
			p.Data = 0
		}
		return
	}

	if target.Busy() {
		return // Stall; try again next round.
	}

	target.Address = p.Address
	if p.State == devices.Store {
		target.Data = p.Data
	}
	target.State = p.State
	target.Processed = false
	target.TargetID = p.ID
}

// reply delivers a finished request back to its requester.
func (b *Bus) reply(p *devices.Port) {
	index := b.devices.Find(p.TargetID)
	if index == -1 {
		b.log.WithFields(logrus.Fields{
			"responder": p.ID,
			"requester": p.TargetID,
			"address":   p.Address,
		}).Debug("requester not found; reply dropped")
		p.Reset()
		return
	}

	req := b.devices[index].Port()
	if p.State == devices.Fetch {
		req.Data = p.Data
	}
	req.Address = p.Address
	req.TargetID = p.ID
	req.Processed = true
	p.Reset()
}

// interrupt forwards an interrupt request to the CPU, provided its port is idle.
func (b *Bus) interrupt(p *devices.Port) {
	index := b.devices.FindType(devices.CPU)
	if index == -1 {
		b.log.WithField("source", p.ID).Debug("no cpu for interrupt")
		return
	}

	cpu := b.devices[index].Port()
	if cpu.Busy() {
		return // Keep asserting until the cpu accepts.
	}

	cpu.State = devices.Interrupt
	cpu.Address = p.Address
	cpu.TargetID = p.ID
	p.Reset()
}

// route returns the port of the device owning addr. Explicit listeners take
// precedence; anything else below the I/O window belongs to RAM.
// Returns nil if no device claims the address.
func (b *Bus) route(addr uint16) *devices.Port {
	var ram *devices.Port

	for _, dev := range b.devices {
		p := dev.Port()
		switch p.Type {
		case devices.CPU, devices.Clock:
			continue
		case devices.RAM:
			if ram == nil {
				ram = p
			}
			continue
		}

		if p.Claims(addr) {
			return p
		}
	}

	if addr < b.mmioBase {
		return ram
	}
	return nil
}
