// Package clock implements a periodic interrupt timer.
package clock

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hexaflex/dcff/arch"
	"github.com/hexaflex/dcff/devices"
)

// NowFunc returns the current wall-clock time.
type NowFunc func() time.Time

// Device defines the ticker state.
type Device struct {
	port     devices.Port
	now      NowFunc       // Time source.
	interval time.Duration // Time between interrupts.
	irq      uint16        // Interrupt id.
	last     time.Time     // Time of the previous Clock call.
	elapsed  time.Duration // Time accumulated towards the next interrupt.
	Raised   uint64        // Number of interrupts asserted.
}

var _ devices.Device = &Device{}

// New creates a ticker raising irq every interval. A nil now selects time.Now.
func New(interval time.Duration, irq int, now NowFunc) (*Device, error) {
	if interval <= 0 {
		return nil, errors.Errorf("clock: invalid interval %v", interval)
	}
	if irq < 0 || irq >= arch.IRQCount {
		return nil, errors.Errorf("clock: invalid interrupt id %d", irq)
	}
	if now == nil {
		now = time.Now
	}

	return &Device{
		port:     devices.NewPort(devices.NewID(devices.Builtin, devices.SerialClock), devices.Clock, false, false, 0, 0),
		now:      now,
		interval: interval,
		irq:      uint16(irq),
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

// Interval returns the time between interrupts.
func (d *Device) Interval() time.Duration {
	return d.interval
}

func (d *Device) Startup() error {
	d.port.Reset()
	d.port.Listen = nil
	d.last = d.now()
	d.elapsed = 0
	return nil
}

func (d *Device) Shutdown() error {
	d.port.Reset()
	return nil
}

// Clock accumulates elapsed time and asserts an interrupt once a full
// interval has passed. Whole intervals missed during a long gap collapse
// into a single interrupt; the remainder carries over.
func (d *Device) Clock() {
	now := d.now()
	if d.last.IsZero() {
		d.last = now
	}

	d.elapsed += now.Sub(d.last)
	d.last = now

	if d.elapsed < d.interval {
		return
	}

	d.elapsed %= d.interval

	if d.port.State != devices.Interrupt {
		d.port.State = devices.Interrupt
		d.port.Address = d.irq
		d.Raised++
	}
}
